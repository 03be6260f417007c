package backup

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const zstdSuffix = ".zst"

// CompressZstd compresses the artifact in place, removing the original,
// and returns the compressed path.
func CompressZstd(inputPath string) (string, error) {
	outputPath := inputPath + zstdSuffix

	inFile, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer inFile.Close()

	outFile, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("create compressed artifact: %w", err)
	}
	defer outFile.Close()

	writer, err := zstd.NewWriter(outFile)
	if err != nil {
		return "", fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := io.Copy(writer, inFile); err != nil {
		writer.Close()
		return "", fmt.Errorf("compress artifact: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("flush compressed artifact: %w", err)
	}

	if err := os.Remove(inputPath); err != nil {
		return "", fmt.Errorf("remove uncompressed artifact: %w", err)
	}
	return outputPath, nil
}

// DecompressZstd writes the decompressed artifact next to the compressed
// one and returns its path. The compressed file is kept: it is the
// session's durable copy.
func DecompressZstd(inputPath string) (string, error) {
	outputPath := strings.TrimSuffix(inputPath, zstdSuffix)
	if outputPath == inputPath {
		return inputPath, nil
	}

	inFile, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("open compressed artifact: %w", err)
	}
	defer inFile.Close()

	reader, err := zstd.NewReader(inFile)
	if err != nil {
		return "", fmt.Errorf("create zstd reader: %w", err)
	}
	defer reader.Close()

	outFile, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("create decompressed artifact: %w", err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, reader); err != nil {
		return "", fmt.Errorf("decompress artifact: %w", err)
	}
	return outputPath, nil
}

// IsCompressed reports whether an artifact name carries the zstd suffix.
func IsCompressed(name string) bool {
	return strings.HasSuffix(name, zstdSuffix)
}
