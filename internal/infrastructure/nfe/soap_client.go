package nfe

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	nfedomain "github.com/jhoicas/nfe-emissor/internal/domain/nfe"
	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// ── Constantes SOAP ───────────────────────────────────────────────────────────

const (
	soap12NS = "http://www.w3.org/2003/05/soap-envelope"

	actionAutorizacao    = pkgnfe.NamespaceWSAutorizacao + "/nfeAutorizacaoLote"
	actionRetAutorizacao = pkgnfe.NamespaceWSRetAutorizacao + "/nfeRetAutorizacaoLote"

	maxResponseBytes = 1 << 20 // 1 MB
	defaultTimeout   = 2 * time.Minute
)

// ── Configuración ─────────────────────────────────────────────────────────────

// PollPolicy backoff de la consulta del recibo.
type PollPolicy struct {
	InitialDelay time.Duration // espera antes de la primera consulta
	Interval     time.Duration // intervalo inicial entre consultas
	MaxInterval  time.Duration
	Multiplier   float64
	Timeout      time.Duration // plazo total de la consulta
	Attempts     int           // 0 = sin límite dentro de Timeout; 1 = una sola consulta
}

// DefaultPollPolicy valores usados cuando la configuración no informa la política.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		InitialDelay: 3 * time.Second,
		Interval:     2 * time.Second,
		MaxInterval:  15 * time.Second,
		Multiplier:   1.5,
		Timeout:      90 * time.Second,
	}
}

// SOAPClientConfig configuración del cliente SEFAZ.
type SOAPClientConfig struct {
	Ambiente string        // tpAmb "1" o "2"
	Timeout  time.Duration // por llamada HTTP
	Poll     PollPolicy
	// RootCAs cadena de confianza del servidor; nil usa la del sistema.
	RootCAs *x509.CertPool
}

// ── Cliente ───────────────────────────────────────────────────────────────────

// SOAPSefazClient envía lotes NFeAutorizacao4 y consulta recibos NFeRetAutorizacao4
// sobre SOAP 1.2 con TLS mutuo. El certificado llega en cada llamada y no se guarda.
type SOAPSefazClient struct {
	endpoints *EndpointTable
	cfg       SOAPClientConfig
	log       zerolog.Logger
}

// NewSOAPSefazClient construye el cliente con la tabla de endpoints inyectada.
func NewSOAPSefazClient(endpoints *EndpointTable, cfg SOAPClientConfig, log zerolog.Logger) *SOAPSefazClient {
	if endpoints == nil {
		endpoints = DefaultEndpointTable()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Ambiente == "" {
		cfg.Ambiente = pkgnfe.AmbienteHomologacao
	}
	if cfg.Poll == (PollPolicy{}) {
		cfg.Poll = DefaultPollPolicy()
	}
	return &SOAPSefazClient{endpoints: endpoints, cfg: cfg, log: log}
}

// Submit envía el enviNFe firmado. Nunca reintenta: un segundo envío podría duplicar el lote.
func (c *SOAPSefazClient) Submit(ctx context.Context, signedXML []byte, uf string, cert tls.Certificate) (nfedomain.Outcome, error) {
	ep, err := c.endpoints.Resolve(uf, c.cfg.Ambiente)
	if err != nil {
		return nil, nfedomain.TransportError(err)
	}
	envelope := buildEnvelope(pkgnfe.NamespaceWSAutorizacao, pkgnfe.UFCode(uf), stripXMLDeclaration(signedXML))

	body, err := c.post(ctx, ep.Autorizacao, actionAutorizacao, envelope, cert)
	if err != nil {
		return nil, err
	}
	resp, err := ParseAuthorityResponse(body)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("uf", uf).Str("cstat", resp.CStat).Str("nrec", resp.NRec).Msg("sefaz: respuesta de autorización")
	return nfedomain.Classify(resp)
}

// PollReceipt consulta una vez el recibo. Pending conserva el recibo consultado.
func (c *SOAPSefazClient) PollReceipt(ctx context.Context, receipt, uf string, cert tls.Certificate) (nfedomain.Outcome, error) {
	ep, err := c.endpoints.Resolve(uf, c.cfg.Ambiente)
	if err != nil {
		return nil, nfedomain.TransportError(err)
	}
	var payload bytes.Buffer
	payload.WriteString(`<consReciNFe xmlns="` + pkgnfe.NamespaceNFe + `" versao="` + pkgnfe.VersaoLeiaute + `">`)
	payload.WriteString(`<tpAmb>` + c.cfg.Ambiente + `</tpAmb><nRec>`)
	_ = xml.EscapeText(&payload, []byte(strings.TrimSpace(receipt)))
	payload.WriteString(`</nRec></consReciNFe>`)

	envelope := buildEnvelope(pkgnfe.NamespaceWSRetAutorizacao, pkgnfe.UFCode(uf), payload.Bytes())
	body, err := c.post(ctx, ep.RetAutorizacao, actionRetAutorizacao, envelope, cert)
	if err != nil {
		return nil, err
	}
	resp, err := ParseAuthorityResponse(body)
	if err != nil {
		return nil, err
	}
	if resp.NRec == "" {
		resp.NRec = receipt
	}
	c.log.Debug().Str("uf", uf).Str("cstat", resp.CStat).Str("nrec", receipt).Msg("sefaz: consulta de recibo")
	return nfedomain.Classify(resp)
}

// PollUntilFinal consulta el recibo con backoff hasta un resultado terminal.
// Siempre hace al menos una consulta. Errores de transporte se reintentan; errores de
// protocolo abortan. Si el plazo vence con el lote en proceso devuelve ErrPollTimeout.
func (c *SOAPSefazClient) PollUntilFinal(ctx context.Context, receipt, uf string, cert tls.Certificate) (nfedomain.Outcome, error) {
	p := c.cfg.Poll
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	wait := p.InitialDelay
	interval := p.Interval
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := sleepCtx(ctx, wait); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, nfedomain.TransportError(fmt.Errorf("consulta de recibo cancelada: %w", err))
			}
			return nil, pollTimeout(receipt, lastErr)
		}

		outcome, err := c.PollReceipt(ctx, receipt, uf, cert)
		switch {
		case err == nil && nfedomain.IsTerminal(outcome):
			return outcome, nil
		case err == nil:
			lastErr = nil
		case errors.Is(err, nfedomain.ErrProtocol):
			return nil, err
		default:
			lastErr = err
			c.log.Warn().Err(err).Str("nrec", receipt).Int("intento", attempt).Msg("sefaz: consulta de recibo fallida, reintentando")
		}

		if p.Attempts > 0 && attempt >= p.Attempts {
			return nil, pollTimeout(receipt, lastErr)
		}

		wait = interval
		interval = nextInterval(interval, p)
	}
}

func nextInterval(cur time.Duration, p PollPolicy) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	next := time.Duration(float64(cur) * mult)
	if p.MaxInterval > 0 && next > p.MaxInterval {
		next = p.MaxInterval
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func pollTimeout(receipt string, last error) error {
	return &nfedomain.EmissionError{
		Kind:   nfedomain.ErrPollTimeout,
		Step:   nfedomain.StepPolling,
		Detail: "recibo " + receipt,
		Err:    last,
	}
}

// post ejecuta la llamada HTTPS con el certificado de la empresa como credencial de cliente.
func (c *SOAPSefazClient) post(ctx context.Context, url, action string, envelope []byte, cert tls.Certificate) ([]byte, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
			RootCAs:      c.cfg.RootCAs,
		},
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: c.cfg.Timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(envelope))
	if err != nil {
		return nil, nfedomain.TransportError(fmt.Errorf("soap: crear request: %w", err))
	}
	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8; action="`+action+`"`)
	req.Header.Set("SOAPAction", action)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nfedomain.TransportError(fmt.Errorf("soap: timeout o cancelación: %w", ctx.Err()))
		}
		return nil, nfedomain.TransportError(fmt.Errorf("soap: llamada HTTP fallida: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nfedomain.TransportError(fmt.Errorf("soap: leer respuesta: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &nfedomain.EmissionError{
			Kind:   nfedomain.ErrTransport,
			Detail: snippet(raw),
			Err:    fmt.Errorf("soap: HTTP %d", resp.StatusCode),
		}
	}
	return raw, nil
}

// buildEnvelope arma el soap12:Envelope con nfeCabecMsg y el payload dentro de nfeDadosMsg.
func buildEnvelope(wsNamespace, cUF string, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	b.WriteString(`<soap12:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap12="` + soap12NS + `">`)
	b.WriteString(`<soap12:Header><nfeCabecMsg xmlns="` + wsNamespace + `">`)
	b.WriteString(`<cUF>` + cUF + `</cUF><versaoDados>` + pkgnfe.VersaoLeiaute + `</versaoDados>`)
	b.WriteString(`</nfeCabecMsg></soap12:Header>`)
	b.WriteString(`<soap12:Body><nfeDadosMsg xmlns="` + wsNamespace + `">`)
	b.Write(payload)
	b.WriteString(`</nfeDadosMsg></soap12:Body></soap12:Envelope>`)
	return b.Bytes()
}

func stripXMLDeclaration(doc []byte) []byte {
	doc = bytes.TrimSpace(doc)
	if bytes.HasPrefix(doc, []byte("<?xml")) {
		if i := bytes.Index(doc, []byte("?>")); i >= 0 {
			return bytes.TrimSpace(doc[i+2:])
		}
	}
	return doc
}

func snippet(raw []byte) string {
	s := strings.Join(strings.Fields(string(raw)), " ")
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
