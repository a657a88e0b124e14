package utilities

import (
	"os"
	"path/filepath"
	"time"
)

// CreateLog agrega una línea a dir/PREFIX_YYYYMMDD.log. Con dir vacío no
// hace nada.
func CreateLog(dir, prefix, message string) error {
	if dir == "" {
		return nil
	}
	now := time.Now()
	filename := filepath.Join(dir, prefix+"_"+now.Format("20060102")+".log")

	// Crear carpeta si no existe
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	logLine := now.Format("15:04:05") + " - " + message + "\n"
	_, err = f.WriteString(logLine)
	return err
}
