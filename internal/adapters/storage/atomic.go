package storage

// atomic.go: escritura atómica de los ficheros de estado.
//
// Estrategia:
//   - Se escribe en un temporal del mismo directorio, fsync, y rename sobre el destino.
//     Un lector ve siempre el estado anterior completo o el nuevo completo.
//   - Un fallo de escritura se reintenta UNA vez tras un backoff corto.
//   - Un fichero ilegible o corrupto se relee una vez antes de devolver ErrCorruptState.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ErrCorruptState indica que el fichero existe pero no se puede interpretar.
// El proceso debe abortar en vez de descartar el historial.
var ErrCorruptState = errors.New("persisted state is corrupt")

// RetryBackoff es la espera antes del único reintento de lectura/escritura.
var RetryBackoff = 250 * time.Millisecond

// writeJSONAtomic serializa v y lo escribe atómicamente en path, con un reintento.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %q: %w", path, err)
	}

	err = writeFileAtomic(path, data)
	if err == nil {
		return nil
	}
	slog.Warn("state write failed, retrying once", "path", path, "err", err, "backoff", RetryBackoff)
	time.Sleep(RetryBackoff)

	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write %q after retry: %w", path, err)
	}
	return nil
}

// writeFileAtomic escribe data en un temporal junto a path y lo renombra encima.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	committed = true

	// fsync del directorio para que el rename sobreviva a un corte; best effort.
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}

// readJSON lee path en v. found=false si el fichero no existe.
// Los errores de lectura o parseo se reintentan una vez.
func readJSON(path string, v any) (found bool, err error) {
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			slog.Warn("state read failed, retrying once", "path", path, "err", err)
			time.Sleep(RetryBackoff)
		}

		var data []byte
		data, err = os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			err = fmt.Errorf("read %q: %w", path, err)
			continue
		}
		if err = json.Unmarshal(data, v); err != nil {
			err = fmt.Errorf("%w: %q: %v", ErrCorruptState, path, err)
			continue
		}
		return true, nil
	}
	return true, err
}
