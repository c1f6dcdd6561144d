// SPDX-License-Identifier: AGPL-3.0-or-later

package packages

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
)

// Feature: PACKAGE_OCI_REPO
// Spec: SPEC_FULL.md §4.8 "pkg/packages/ociRepo.go"

// OCIRepo resolves stage/build package names as OCI image references
// (`<registry>/<name>:<version>`), fetching and unpacking them as image
// layers. It is the reference Repository implementation.
type OCIRepo struct {
	registry string
	index    *Index
}

// NewOCIRepo builds an OCIRepo that resolves bare package names against
// registryHost (e.g. "ghcr.io/partcraft-packages"), recording extracted
// file origins in index.
func NewOCIRepo(registryHost string, index *Index) *OCIRepo {
	return &OCIRepo{registry: registryHost, index: index}
}

func (o *OCIRepo) resolveRef(pkgName string) (name.Reference, error) {
	ref := pkgName
	if !strings.Contains(ref, "/") {
		ref = o.registry + "/" + ref
	}
	return name.ParseReference(ref)
}

// FetchStagePackages pulls each name's image manifest+layers into cacheDir
// as a gzip tarball per package, bounding concurrency at GOMAXPROCS
// (spec.md §5's sanctioned parallelism seam: "the package/source
// collaborators").
func (o *OCIRepo) FetchStagePackages(ctx context.Context, cacheDir string, names []string) ([]string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %q: %w", cacheDir, err)
	}

	paths := make([]string, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, n := range names {
		i, n := i, n
		g.Go(func() error {
			path, err := o.fetchOne(gctx, cacheDir, n)
			if err != nil {
				return fmt.Errorf("fetching %q: %w", n, err)
			}
			paths[i] = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (o *OCIRepo) fetchOne(ctx context.Context, cacheDir, pkgName string) (string, error) {
	ref, err := o.resolveRef(pkgName)
	if err != nil {
		return "", fmt.Errorf("parsing reference: %w", err)
	}

	img, err := remote.Image(ref, remote.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrPackageNotFound, pkgName)
	}

	layers, err := img.Layers()
	if err != nil {
		return "", fmt.Errorf("listing layers: %w", err)
	}

	destPath := filepath.Join(cacheDir, sanitizeFileName(pkgName)+".tar.gz")
	out, err := os.Create(destPath) //nolint:gosec // destPath is derived from cacheDir, a caller-controlled work dir
	if err != nil {
		return "", err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for _, layer := range layers {
		rc, err := layer.Compressed()
		if err != nil {
			return "", fmt.Errorf("reading layer: %w", err)
		}
		if err := appendLayerToArchive(tw, rc); err != nil {
			rc.Close()
			return "", err
		}
		rc.Close()
	}

	if err := tw.Close(); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}

	return destPath, nil
}

// appendLayerToArchive re-decompresses and re-reads a layer's gzip tar
// stream, copying its entries into tw. Layers are already gzip streams;
// this normalizes every fetched package into one combined archive so
// UnpackStagePackages has a single format to extract.
func appendLayerToArchive(tw *tar.Writer, rc io.Reader) error {
	gz, err := gzip.NewReader(rc)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading layer tar: %w", err)
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := io.Copy(tw, tr); err != nil { //nolint:gosec // bounded by the layer's declared tar size
				return err
			}
		}
	}
	return nil
}

// UnpackStagePackages extracts each fetched archive into installPath,
// translating OCI whiteout/opaque markers and recording each regular
// file's origin package in the index, the same extraction shape
// xfeldman-aegisvm's internal/image/unpack.go uses for VM image layers.
func (o *OCIRepo) UnpackStagePackages(ctx context.Context, stagePackagesPath []string, installPath string) error {
	for _, archivePath := range stagePackagesPath {
		pkgName := strings.TrimSuffix(filepath.Base(archivePath), ".tar.gz")
		if err := o.unpackOne(ctx, archivePath, installPath, pkgName); err != nil {
			return fmt.Errorf("unpacking %q: %w", archivePath, err)
		}
	}
	return nil
}

func (o *OCIRepo) unpackOne(ctx context.Context, archivePath, installPath, pkgName string) error {
	f, err := os.Open(archivePath) //nolint:gosec // archivePath is produced by FetchStagePackages, not external input
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		cleanName := filepath.Clean(hdr.Name)
		if strings.HasPrefix(cleanName, "..") {
			continue
		}
		target := filepath.Join(installPath, cleanName)
		base := filepath.Base(cleanName)
		dir := filepath.Dir(cleanName)

		if base == ".wh..wh..opq" {
			opqDir := filepath.Join(installPath, dir)
			entries, _ := os.ReadDir(opqDir)
			for _, e := range entries {
				_ = os.RemoveAll(filepath.Join(opqDir, e.Name()))
			}
			continue
		}
		if strings.HasPrefix(base, ".wh.") {
			_ = os.RemoveAll(filepath.Join(installPath, dir, strings.TrimPrefix(base, ".wh.")))
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil { //nolint:gosec // tar mode bits
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)) //nolint:gosec // tar mode bits
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil { //nolint:gosec // bounded by the archive's own declared size
				out.Close()
				return err
			}
			out.Close()

			if o.index != nil {
				if err := o.index.Record("default", cleanName, pkgName); err != nil {
					return err
				}
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (o *OCIRepo) RefreshBuildPackagesList(context.Context) error { return nil }

func (o *OCIRepo) FetchPackages(ctx context.Context, names []string) error {
	_, err := o.FetchStagePackages(ctx, os.TempDir(), names)
	return err
}

func (o *OCIRepo) InstallBuildPackages(context.Context, []string) error {
	return fmt.Errorf("install build packages: %w", ErrNotSupported)
}

func (o *OCIRepo) InstalledPackages(context.Context) ([]string, error) { return nil, nil }

func (o *OCIRepo) PackagesForSourceType(sourceType string) ([]string, error) {
	if sourceType == "git" {
		return []string{"git"}, nil
	}
	return nil, nil
}

func (o *OCIRepo) ReadOriginStagePackage(_ context.Context, file string) (string, bool, error) {
	if o.index == nil {
		return "", false, nil
	}
	return o.index.Lookup("default", file)
}

// sanitizeFileName replaces path-hostile characters in an OCI reference
// so it can be used as a cache file name.
func sanitizeFileName(s string) string {
	replacer := func(r rune) rune {
		switch r {
		case '/', ':', '@':
			return '_'
		default:
			return r
		}
	}
	return strings.Map(replacer, s)
}

// ErrPackageNotFound is returned when a package name cannot be resolved
// to an image reference (spec.md §7 "StagePackageNotFound /
// OverlayPackageNotFound").
var ErrPackageNotFound = fmt.Errorf("package not found")

// ErrNotSupported is returned by Repository methods the OCI-backed
// reference implementation deliberately leaves unimplemented: installing
// build packages into a live mounted view requires a real overlay mount
// and package manager, both out of scope for this reference builtin
// (spec.md §1's "package repository adapters ... remain named-only
// collaborator contracts").
var ErrNotSupported = fmt.Errorf("not supported by the OCI-backed reference repository")
