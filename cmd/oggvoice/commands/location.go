package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/haivivi/oggvoice/pkg/audio/oggopus"
	"github.com/haivivi/oggvoice/pkg/audio/opusenc"
	"github.com/haivivi/oggvoice/pkg/audio/pcm"
	"github.com/haivivi/oggvoice/pkg/catalog"
	"github.com/haivivi/oggvoice/pkg/cli"
	"github.com/haivivi/oggvoice/pkg/storage"
)

// stdio is the location name for stdin and stdout.
const stdio = "-"

// s3Store returns a store for the bucket of loc, configured from cfg.S3
// and the environment.
func s3Store(cfg *cli.Config, loc storage.Location) storage.FileStore {
	s3cfg := getEnv().S3Config(cfg.S3)
	return storage.NewS3(storage.NewS3Client(s3cfg), loc.Bucket, s3cfg.Prefix)
}

// openSource opens a local path, an s3:// object or stdin for reading.
func openSource(ctx context.Context, cfg *cli.Config, name string) (io.ReadCloser, error) {
	if name == stdio {
		return io.NopCloser(os.Stdin), nil
	}
	loc, err := storage.ParseLocation(name)
	if err != nil {
		return nil, err
	}
	if loc.IsS3() {
		return s3Store(cfg, loc).Read(ctx, loc.Path)
	}
	return os.Open(loc.Path)
}

// openSink opens a local path, an s3:// object or stdout for writing.
// Local files are replaced only when force is set.
func openSink(ctx context.Context, cfg *cli.Config, name string, force bool) (io.WriteCloser, error) {
	if name == stdio {
		return nopWriteCloser{os.Stdout}, nil
	}
	loc, err := storage.ParseLocation(name)
	if err != nil {
		return nil, err
	}
	if loc.IsS3() {
		return s3Store(cfg, loc).Write(ctx, loc.Path)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	return os.OpenFile(loc.Path, flags, 0o644)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// createWriter opens an OggOpus writer on name. The returned location is
// what gets recorded in the catalog.
func createWriter(ctx context.Context, cfg *cli.Config, name string, force bool, enc *opusenc.Encoder, opts ...oggopus.Option) (*oggopus.Writer, string, error) {
	if name == stdio {
		w, err := oggopus.NewWriter(os.Stdout, enc, opts...)
		return w, stdio, err
	}

	loc, err := storage.ParseLocation(name)
	if err != nil {
		return nil, "", err
	}
	if loc.IsS3() {
		w, err := oggopus.NewStoreWriter(ctx, s3Store(cfg, loc), loc.Path, enc, opts...)
		return w, loc.String(), err
	}

	path, err := filepath.Abs(loc.Path)
	if err != nil {
		return nil, "", err
	}
	if force {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, "", err
		}
	}
	w, err := oggopus.Create(path, enc, opts...)
	return w, path, err
}

// pcmInput is audio read from a WAV file or a raw s16le stream.
type pcmInput struct {
	io.Reader
	Format pcm.Format
	WAV    bool
}

// readPCMInput sniffs r for a RIFF header. Without one, r is raw PCM in
// raw format.
func readPCMInput(r io.Reader, raw pcm.Format) (*pcmInput, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err == nil && string(magic) == "RIFF" {
		f, size, err := pcm.ReadWAVHeader(br)
		if err != nil {
			return nil, err
		}
		in := &pcmInput{Reader: br, Format: f, WAV: true}
		// 0 and 0xffffffff mark streamed WAV files of unknown length.
		if size != 0 && size != 0xffffffff {
			in.Reader = io.LimitReader(br, int64(size))
		}
		return in, nil
	}
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("raw pcm input: %w", err)
	}
	return &pcmInput{Reader: br, Format: raw}, nil
}

// openCatalog opens the recordings catalog configured in cfg.
func openCatalog(cfg *cli.Config) (*catalog.Catalog, error) {
	dir := getEnv().CatalogDir
	if dir == "" {
		dir = cfg.CatalogDir
	}
	if dir == "" {
		paths, err := cli.NewPaths()
		if err != nil {
			return nil, err
		}
		if err := paths.EnsureCatalogDir(); err != nil {
			return nil, err
		}
		dir = paths.CatalogDir()
	}
	return catalog.Open(dir)
}
