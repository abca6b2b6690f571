package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"os"

	"github.com/mholt/archives"

	"github.com/joeycumines/go-release-action/src/pack"
)

// Native archives in-process with mholt/archives.
type Native struct{}

func (Native) Name() string { return "native" }

// Archive writes entries to out as a zip or gzipped tarball.
func (Native) Archive(ctx context.Context, format pack.Format, out string, entries []Entry) error {
	var a archives.Archiver
	switch format {
	case pack.FormatZip:
		a = archives.Zip{Compression: zip.Deflate}
	case pack.FormatTarGz:
		a = archives.CompressedArchive{
			Compression: archives.Gz{},
			Archival:    archives.Tar{},
		}
	default:
		return fmt.Errorf("%w: native archiver cannot write %q", ErrPackaging, format)
	}

	names := make(map[string]string, len(entries))
	for _, e := range entries {
		names[e.Path] = e.Name
	}
	files, err := archives.FilesFromDisk(ctx, nil, names)
	if err != nil {
		return fmt.Errorf("%w: collecting files: %v", ErrPackaging, err)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPackaging, err)
	}
	if err := a.Archive(ctx, f, files); err != nil {
		f.Close()
		return fmt.Errorf("%w: writing %s: %v", ErrPackaging, out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrPackaging, err)
	}
	return nil
}
