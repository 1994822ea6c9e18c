package localfs

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"driftcast/internal/ports"
)

// LocalFS implements ports.RemoteStorage on a local directory tree, for
// development and tests. Entry IDs are slash-separated paths relative to the
// configured root; a directory is a folder, the empty ID is the root itself.
type LocalFS struct {
	root string
}

func New(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) List(ctx context.Context, folderID, pageToken string) (ports.ListPage, error) {
	dir := filepath.Join(l.root, filepath.FromSlash(folderID))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ports.ListPage{}, fmt.Errorf("localfs list %s: %w", folderID, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	page := ports.ListPage{}
	for _, e := range entries {
		id := e.Name()
		if folderID != "" {
			id = folderID + "/" + e.Name()
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		page.Entries = append(page.Entries, ports.Entry{
			ID:           id,
			Name:         e.Name(),
			MimeType:     mimeFor(e.Name(), e.IsDir()),
			IsFolder:     e.IsDir(),
			SizeBytes:    info.Size(),
			ModifiedTime: info.ModTime().UTC(),
			ParentID:     folderID,
		})
	}
	return page, nil
}

func (l *LocalFS) Get(ctx context.Context, fileID string) (ports.Entry, error) {
	p := filepath.Join(l.root, filepath.FromSlash(fileID))
	st, err := os.Stat(p)
	if err != nil {
		return ports.Entry{}, fmt.Errorf("localfs get %s: %w", fileID, err)
	}

	parent := ""
	if i := strings.LastIndex(fileID, "/"); i >= 0 {
		parent = fileID[:i]
	}

	return ports.Entry{
		ID:           fileID,
		Name:         st.Name(),
		MimeType:     mimeFor(st.Name(), st.IsDir()),
		IsFolder:     st.IsDir(),
		SizeBytes:    st.Size(),
		ModifiedTime: st.ModTime().UTC(),
		ParentID:     parent,
	}, nil
}

func (l *LocalFS) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(l.root, filepath.FromSlash(fileID)))
	if err != nil {
		return nil, fmt.Errorf("localfs download %s: %w", fileID, err)
	}
	return f, nil
}

func (l *LocalFS) Upload(ctx context.Context, folderID, name, mimeType string, r io.Reader) (ports.Entry, error) {
	id := name
	if folderID != "" {
		id = folderID + "/" + name
	}

	dst := filepath.Join(l.root, filepath.FromSlash(id))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ports.Entry{}, err
	}

	f, err := os.Create(dst)
	if err != nil {
		return ports.Entry{}, err
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return ports.Entry{}, err
	}

	return ports.Entry{
		ID:        id,
		Name:      name,
		MimeType:  mimeType,
		SizeBytes: n,
		ParentID:  folderID,
	}, nil
}

func mimeFor(name string, isDir bool) string {
	if isDir {
		return "inode/directory"
	}
	if mt := mime.TypeByExtension(filepath.Ext(name)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
