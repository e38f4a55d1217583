package workspace

import (
	"errors"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/cv"
)

func writePNG(path string, f *cv.Frame) error {
	if f == nil || f.Image == nil {
		return apperr.Input("workspace.writePNG", "nil frame for %s", filepath.Base(path))
	}
	out, err := os.Create(path)
	if err != nil {
		return apperr.Wrapf(err, apperr.KindInput, "workspace.writePNG", "create %s", path)
	}
	if err := png.Encode(out, f.Image); err != nil {
		out.Close()
		return apperr.Wrapf(err, apperr.KindInput, "workspace.writePNG", "encode %s", path)
	}
	if err := out.Close(); err != nil {
		return apperr.Wrapf(err, apperr.KindInput, "workspace.writePNG", "close %s", path)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return apperr.Wrapf(err, apperr.KindInput, "workspace.copyFile", "open %s", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return apperr.Wrapf(err, apperr.KindInput, "workspace.copyFile", "create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return apperr.Wrapf(err, apperr.KindInput, "workspace.copyFile", "copy to %s", dst)
	}
	return out.Close()
}

// moveDir renames src to dst, falling back to copy and delete across
// filesystems
func moveDir(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	err = filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
	if err != nil {
		return err
	}
	return os.RemoveAll(src)
}
