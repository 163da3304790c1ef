package nfe

import (
	"fmt"
	"strconv"
	"strings"

	pkgnfe "github.com/jhoicas/nfe-emissor/pkg/nfe"
)

// Status estado del resultado de la SEFAZ.
type Status string

const (
	StatusAutorizada Status = "AUTORIZADA"
	StatusPendente   Status = "PENDENTE"
	StatusRejeitada  Status = "REJEITADA"
)

// Outcome resultado tri-estado de un envío o consulta: Authorized, Pending o Rejected.
// El método no exportado cierra la unión a este paquete.
type Outcome interface {
	Status() Status
	isOutcome()
}

// Authorized documento autorizado (cStat 100) con el número de protocolo.
type Authorized struct {
	Protocol string
	Code     int
	Reason   string
}

// Pending lote recibido para procesamiento asíncrono (cStat 101-199) con el número de recibo.
type Pending struct {
	Receipt string
	Code    int
	Reason  string
}

// Rejected cualquier otro cStat; Reason nunca es vacío.
type Rejected struct {
	Code   int
	Reason string
}

func (Authorized) Status() Status { return StatusAutorizada }
func (Pending) Status() Status    { return StatusPendente }
func (Rejected) Status() Status   { return StatusRejeitada }

func (Authorized) isOutcome() {}
func (Pending) isOutcome()    {}
func (Rejected) isOutcome()   {}

// IsTerminal Authorized y Rejected son finales; Pending exige consultar el recibo.
func IsTerminal(o Outcome) bool {
	switch o.(type) {
	case Authorized, Rejected:
		return true
	default:
		return false
	}
}

// AuthorityResponse campos extraídos de retEnviNFe / retConsReciNFe.
type AuthorityResponse struct {
	CStat   string
	XMotivo string
	NRec    string
	NProt   string
}

// Classify traduce la respuesta de la SEFAZ a un Outcome.
//
//	100      -> Authorized (exige nProt)
//	101..199 -> Pending    (exige nRec)
//	resto    -> Rejected   (xMotivo o texto genérico)
func Classify(r AuthorityResponse) (Outcome, error) {
	raw := strings.TrimSpace(r.CStat)
	code, err := strconv.Atoi(raw)
	if err != nil {
		return nil, ProtocolError("cStat="+raw, fmt.Errorf("cStat no numérico"))
	}
	motivo := strings.TrimSpace(r.XMotivo)

	switch {
	case code == pkgnfe.CStatAutorizado:
		prot := strings.TrimSpace(r.NProt)
		if prot == "" {
			return nil, ProtocolError("cStat=100", fmt.Errorf("autorización sin nProt"))
		}
		return Authorized{Protocol: prot, Code: code, Reason: motivo}, nil
	case code > 100 && code < 200:
		rec := strings.TrimSpace(r.NRec)
		if rec == "" {
			return nil, ProtocolError("cStat="+raw, fmt.Errorf("lote en procesamiento sin nRec"))
		}
		return Pending{Receipt: rec, Code: code, Reason: motivo}, nil
	default:
		if motivo == "" {
			motivo = fmt.Sprintf("rechazada por la SEFAZ (cStat %d)", code)
		}
		return Rejected{Code: code, Reason: motivo}, nil
	}
}
