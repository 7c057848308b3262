package importer

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
)

// ReadHAEFile returns the JSON content of a .hae file. Files that are
// already plain JSON are returned as is; anything else is decoded with the
// lzfse CLI tool.
func ReadHAEFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if trimmed := bytes.TrimLeft(data, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '{' {
		return data, nil
	}
	return decompressLZFSE(data)
}

func decompressLZFSE(data []byte) ([]byte, error) {
	cmd := exec.Command("lzfse", "-decode")
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("lzfse decode: %w (stderr: %s)", err, stderr.String())
	}
	return stdout.Bytes(), nil
}
