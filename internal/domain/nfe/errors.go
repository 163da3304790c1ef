package nfe

import (
	"errors"
	"fmt"
)

// Tipos de error del pipeline de emisión. Un rechazo de la SEFAZ no es un error:
// es un resultado terminal (Rejected) que se persiste igual que una autorización.
var (
	// ErrValidation solicitud mal formada; nunca llega a la SEFAZ.
	ErrValidation = errors.New("nfe: solicitud inválida")
	// ErrCredential contraseña incorrecta o contenedor PKCS#12 ilegible; falla antes de firmar.
	ErrCredential = errors.New("nfe: certificado o contraseña inválidos")
	// ErrTransport red, timeout o TLS con la SEFAZ; reintentable por el llamador.
	ErrTransport = errors.New("nfe: falla de comunicación con la SEFAZ")
	// ErrProtocol la SEFAZ respondió pero la respuesta no tiene la estructura esperada.
	ErrProtocol = errors.New("nfe: respuesta de la SEFAZ no reconocida")
	// ErrPersistAfterDecision la SEFAZ ya decidió el documento pero el registro local falló.
	ErrPersistAfterDecision = errors.New("nfe: documento decidido por la SEFAZ sin registro local")
	// ErrPollTimeout el recibo siguió en procesamiento hasta agotar el plazo de consulta.
	ErrPollTimeout = fmt.Errorf("%w: recibo sin resultado final dentro del plazo", ErrTransport)
)

// Pasos de la máquina de estados de una emisión.
const (
	StepValidating = "VALIDATING"
	StepAllocating = "ALLOCATING"
	StepBuilding   = "BUILDING"
	StepSigning    = "SIGNING"
	StepSubmitting = "SUBMITTING"
	StepPolling    = "POLLING"
	StepPersisting = "PERSISTING"
	StepDone       = "DONE"
	StepFailed     = "FAILED"
)

// EmissionError error tipado con el paso de la máquina de estados donde ocurrió.
// errors.Is funciona tanto contra el Kind como contra el error de origen.
type EmissionError struct {
	Kind   error  // uno de los Err* de este paquete
	Step   string // ALLOCATING, BUILDING, SIGNING, ...
	Detail string // contexto adicional (cStat crudo, chave, protocolo)
	Err    error
}

func (e *EmissionError) Error() string {
	msg := e.Kind.Error()
	if e.Step != "" {
		msg += " [" + e.Step + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *EmissionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError construye un EmissionError. Si err ya es un EmissionError se conserva su Kind.
func NewError(kind error, step string, err error) *EmissionError {
	var ee *EmissionError
	if errors.As(err, &ee) {
		if step == "" {
			step = ee.Step
		}
		return &EmissionError{Kind: ee.Kind, Step: step, Detail: ee.Detail, Err: ee.Err}
	}
	return &EmissionError{Kind: kind, Step: step, Err: err}
}

// ProtocolError atajo para respuestas irreconocibles, con el detalle crudo para diagnóstico.
func ProtocolError(detail string, err error) *EmissionError {
	return &EmissionError{Kind: ErrProtocol, Detail: detail, Err: err}
}

// TransportError atajo para fallas de red/TLS/timeout.
func TransportError(err error) *EmissionError {
	return &EmissionError{Kind: ErrTransport, Err: err}
}

// KindOf devuelve el tipo de error o nil si err no pertenece al pipeline.
func KindOf(err error) error {
	var ee *EmissionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	for _, k := range []error{ErrValidation, ErrCredential, ErrPollTimeout, ErrTransport, ErrProtocol, ErrPersistAfterDecision} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
