// Package storage guarda los artefactos de una emisión (XML firmado y DANFE) en disco
// local, Amazon S3 o Google Cloud Storage.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Drivers soportados.
const (
	DriverLocal = "local"
	DriverS3    = "s3"
	DriverGCS   = "gcs"
)

// ArtifactStore puerto de almacenamiento de artefactos.
type ArtifactStore interface {
	// Put guarda data bajo key y devuelve la ubicación (ruta, s3://, gs://).
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get devuelve el contenido; domain.ErrNotFound si no existe.
	Get(ctx context.Context, key string) ([]byte, error)
}

// Config selección del backend.
type Config struct {
	Driver   string
	LocalDir string
	Bucket   string
	Region   string
	Prefix   string
}

// New construye el store configurado.
func New(ctx context.Context, cfg Config) (ArtifactStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverLocal:
		return NewLocalStore(cfg.LocalDir)
	case DriverS3:
		return NewS3Store(ctx, cfg.Bucket, cfg.Region, cfg.Prefix)
	case DriverGCS:
		return NewGCSStore(ctx, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("storage: driver desconocido %q (usar local, s3 o gcs)", cfg.Driver)
	}
}

// XMLKey clave del XML firmado, indexado por chave de acceso.
func XMLKey(chave string) string { return "xml/" + chave + ".xml" }

// PDFKey clave del DANFE, indexado por ID de la nota.
func PDFKey(notaID string) string { return "pdf/" + notaID + ".pdf" }

// cleanKey evita claves absolutas o con "..".
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.TrimSpace(key))[1:]
	if k == "" || k == "." {
		return "", fmt.Errorf("storage: clave vacía")
	}
	return k, nil
}

func withPrefix(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
