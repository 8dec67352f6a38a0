// Package archive bundles one collector run's output for upload to a
// CI artifact store (SPEC_FULL.md domain stack, "--bundle PATH"),
// using the teacher's own tar library the way
// daemon/builder/dockerfile exercises it for build contexts.
package archive

import (
	"io"
	"os"
	"path/filepath"

	"github.com/moby/go-archive"
	"github.com/moby/go-archive/compression"
)

// Bundle copies outputPath (the compilation database) and, when
// present, logPath (the raw per-observation debug log) into a single
// uncompressed tar file at destPath.
func Bundle(destPath, outputPath, logPath string) error {
	stageDir, err := os.MkdirTemp("", "intercc-bundle-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(stageDir)

	if err := copyInto(stageDir, "compile_commands.json", outputPath); err != nil {
		return err
	}
	if logPath != "" {
		if err := copyInto(stageDir, "observations.log", logPath); err != nil {
			return err
		}
	}

	tarStream, err := archive.Tar(stageDir, compression.None)
	if err != nil {
		return err
	}
	defer tarStream.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dest.Close()

	_, err = io.Copy(dest, tarStream)
	return err
}

func copyInto(stageDir, name, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(stageDir, name))
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
