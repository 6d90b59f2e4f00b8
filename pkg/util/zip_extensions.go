package util

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"strings"
	"sync"
)

// DefaultExtensionExclusions lists what an unpacked review extension carries
// during development but never needs inside the browser.
var DefaultExtensionExclusions = struct {
	ExcludeDirectory        []string
	ExcludeFilenamePatterns []string
}{
	ExcludeDirectory: []string{
		"node_modules",
		".git",
		"__tests__",
		"coverage",
	},
	ExcludeFilenamePatterns: []string{
		"*.test.js",
		"*.spec.js",
		"*.map",
		"*.log",
		"*.swp",
		".DS_Store",
	},
}

// ExtensionZipOptions configures ZipExtensionDirectory.
type ExtensionZipOptions struct {
	ExcludeDefaults bool // keep development files
}

// ZipStats tracks what went into an extension archive.
type ZipStats struct {
	mu            sync.Mutex
	FilesIncluded int
	BytesIncluded int64
}

func (s *ZipStats) AddIncluded(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesIncluded++
	s.BytesIncluded += bytes
}

// ZipExtensionDirectory writes the unpacked extension at srcDir to destZip.
func ZipExtensionDirectory(srcDir, destZip string, opts *ExtensionZipOptions) (*ZipStats, error) {
	if opts == nil {
		opts = &ExtensionZipOptions{}
	}

	zipFile, err := os.Create(destZip)
	if err != nil {
		return nil, err
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	walkOpts := WalkOptions{IncludeHidden: true}
	if !opts.ExcludeDefaults {
		walkOpts.ExcludeDirectory = DefaultExtensionExclusions.ExcludeDirectory
		walkOpts.ExcludePatterns = DefaultExtensionExclusions.ExcludeFilenamePatterns
	}

	stats := &ZipStats{}
	dirsAdded := make(map[string]struct{})
	err = WalkFiles(srcDir, walkOpts, func(location, rel string) error {
		if err := addParentDirs(zipWriter, rel, dirsAdded); err != nil {
			return err
		}
		written, err := addZipEntry(zipWriter, location, rel)
		if err != nil {
			return err
		}
		stats.AddIncluded(written)
		return nil
	})
	return stats, err
}

func addParentDirs(zw *zip.Writer, rel string, added map[string]struct{}) error {
	dir := path.Dir(rel)
	if dir == "." || dir == "" {
		return nil
	}
	var current string
	for _, segment := range strings.Split(dir, "/") {
		if current == "" {
			current = segment
		} else {
			current = current + "/" + segment
		}
		if _, ok := added[current+"/"]; ok {
			continue
		}
		if _, err := zw.Create(current + "/"); err != nil {
			return err
		}
		added[current+"/"] = struct{}{}
	}
	return nil
}

func addZipEntry(zw *zip.Writer, location, rel string) (int64, error) {
	info, err := os.Lstat(location)
	if err != nil {
		return 0, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(location)
		if err != nil {
			return 0, err
		}
		hdr := &zip.FileHeader{Name: rel, Method: zip.Store}
		hdr.SetMode(os.ModeSymlink | 0777)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return 0, err
		}
		n, err := w.Write([]byte(target))
		return int64(n), err
	}

	w, err := zw.Create(rel)
	if err != nil {
		return 0, err
	}
	file, err := os.Open(location)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(w, file)
	if closeErr := file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return written, err
}
