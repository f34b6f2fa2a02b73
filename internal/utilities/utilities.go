package utilities

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var mu sync.Mutex

// CreateLog agrega una línea a dir/<prefix>_<YYYYMMDD>.log
func CreateLog(dir, prefix, message string) error {
	now := time.Now()
	filename := filepath.Join(dir, prefix+"_"+now.Format("20060102")+".log")

	mu.Lock()
	defer mu.Unlock()

	// Crear carpeta si no existe
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(now.Format("15:04:05") + " - " + message + "\n")
	return err
}

// FrameLine formatea un frame crudo para CreateLog: origen, tamaño y hex.
func FrameLine(remote string, data []byte) string {
	var sb strings.Builder
	sb.Grow(len(remote) + 16 + 2*len(data))
	sb.WriteString(remote)
	sb.WriteString(" len=")
	sb.WriteString(strconv.Itoa(len(data)))
	sb.WriteString(" hex=")
	sb.WriteString(hex.EncodeToString(data))
	return sb.String()
}
