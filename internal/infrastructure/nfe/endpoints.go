package nfe

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// URLs del SEFAZ Virtual RS (SVRS), autorizador nacional por defecto.
const (
	svrsAutorizacaoHomologacao    = "https://hnfews.sefazvirtual.fazenda.gov.br/ws/NFeAutorizacao4"
	svrsRetAutorizacaoHomologacao = "https://hnfews.sefazvirtual.fazenda.gov.br/ws/NFeRetAutorizacao4"
	svrsAutorizacaoProducao       = "https://nfews.sefazvirtual.fazenda.gov.br/ws/NFeAutorizacao4"
	svrsRetAutorizacaoProducao    = "https://nfews.sefazvirtual.fazenda.gov.br/ws/NFeRetAutorizacao4"
)

// Endpoint par de URLs de un autorizador: envío del lote y consulta del recibo.
type Endpoint struct {
	Autorizacao    string `yaml:"autorizacao"`
	RetAutorizacao string `yaml:"ret_autorizacao"`
}

func (e Endpoint) complete() bool {
	return e.Autorizacao != "" && e.RetAutorizacao != ""
}

// EndpointTable tabla inmutable UF × ambiente -> Endpoint.
// Se construye una vez al arrancar y se inyecta en el cliente SOAP.
type EndpointTable struct {
	byUF     map[string]Endpoint // clave "UF|tpAmb"
	fallback map[string]Endpoint // clave tpAmb
}

// DefaultEndpointTable todas las UF resuelven al SVRS.
func DefaultEndpointTable() *EndpointTable {
	return &EndpointTable{
		byUF: map[string]Endpoint{},
		fallback: map[string]Endpoint{
			pkgnfe.AmbienteHomologacao: {Autorizacao: svrsAutorizacaoHomologacao, RetAutorizacao: svrsRetAutorizacaoHomologacao},
			pkgnfe.AmbienteProducao:    {Autorizacao: svrsAutorizacaoProducao, RetAutorizacao: svrsRetAutorizacaoProducao},
		},
	}
}

// NewEndpointTable construye una tabla a partir de entradas explícitas (tests y mocks).
// Las claves de byUF son "UF" y se aplican a ambos ambientes; fallback indexa por tpAmb.
func NewEndpointTable(fallback map[string]Endpoint, byUF map[string]map[string]Endpoint) *EndpointTable {
	t := &EndpointTable{byUF: map[string]Endpoint{}, fallback: map[string]Endpoint{}}
	for amb, e := range fallback {
		t.fallback[amb] = e
	}
	for uf, envs := range byUF {
		for amb, e := range envs {
			t.byUF[key(uf, amb)] = e
		}
	}
	return t
}

// endpointsFile formato YAML:
//
//	default:
//	  homologacao: {autorizacao: ..., ret_autorizacao: ...}
//	  producao:    {autorizacao: ..., ret_autorizacao: ...}
//	uf:
//	  MG:
//	    homologacao: {...}
type endpointsFile struct {
	Default map[string]Endpoint            `yaml:"default"`
	UF      map[string]map[string]Endpoint `yaml:"uf"`
}

// LoadEndpointTable parte de DefaultEndpointTable y aplica las sobreescrituras del archivo.
// path vacío devuelve los valores por defecto.
func LoadEndpointTable(path string) (*EndpointTable, error) {
	t := DefaultEndpointTable()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sefaz: leer tabla de endpoints: %w", err)
	}
	var f endpointsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("sefaz: parsear tabla de endpoints: %w", err)
	}
	for name, e := range f.Default {
		amb, err := ambienteKey(name)
		if err != nil {
			return nil, err
		}
		if !e.complete() {
			return nil, fmt.Errorf("sefaz: endpoint por defecto %q incompleto", name)
		}
		t.fallback[amb] = e
	}
	for uf, envs := range f.UF {
		if !pkgnfe.IsValidUF(uf) {
			return nil, fmt.Errorf("sefaz: UF desconocida %q en tabla de endpoints", uf)
		}
		for name, e := range envs {
			amb, err := ambienteKey(name)
			if err != nil {
				return nil, err
			}
			if !e.complete() {
				return nil, fmt.Errorf("sefaz: endpoint %s/%s incompleto", uf, name)
			}
			t.byUF[key(uf, amb)] = e
		}
	}
	return t, nil
}

// Resolve devuelve el endpoint de la UF en el ambiente (tpAmb "1" o "2").
// UF sin entrada propia usa el autorizador por defecto del ambiente.
func (t *EndpointTable) Resolve(uf, ambiente string) (Endpoint, error) {
	if e, ok := t.byUF[key(uf, ambiente)]; ok {
		return e, nil
	}
	if e, ok := t.fallback[ambiente]; ok {
		return e, nil
	}
	return Endpoint{}, fmt.Errorf("sefaz: sin endpoint para ambiente %q", ambiente)
}

func key(uf, ambiente string) string {
	return pkgnfe.NormalizeUF(uf) + "|" + ambiente
}

func ambienteKey(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "homologacao", pkgnfe.AmbienteHomologacao:
		return pkgnfe.AmbienteHomologacao, nil
	case "producao", pkgnfe.AmbienteProducao:
		return pkgnfe.AmbienteProducao, nil
	default:
		return "", fmt.Errorf("sefaz: ambiente desconocido %q en tabla de endpoints", name)
	}
}
