package supervisor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WritePidFile записывает PID текущего процесса для команды stop.
func WritePidFile(path string) error {
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// RemovePidFile удаляет pid-файл. Отсутствие файла не считается ошибкой.
func RemovePidFile(path string) {
	_ = os.Remove(path)
}

// ReadPidFile читает PID супервизора.
func ReadPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}
