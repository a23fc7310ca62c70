package minioutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kjk/filedump/filedump"
	"github.com/kjk/filedump/log"
)

type BackupOptions struct {
	// name of metadata file, filedump.DefaultMetaFileName if empty
	MetaFileName string
	// compress uploaded files with brotli
	Compress bool
}

type BackupResult struct {
	State    filedump.State
	Uploaded []string
	// full shards that were already uploaded by previous backup
	Skipped []string
}

func (o *BackupOptions) metaFileName() string {
	if o == nil || o.MetaFileName == "" {
		return filedump.DefaultMetaFileName
	}
	return o.MetaFileName
}

func (o *BackupOptions) remoteName(name string) string {
	if o != nil && o.Compress {
		return name + brotliExt
	}
	return name
}

// backupPlan returns names of files to upload for a store in state st.
// Metadata is last so that a backup interrupted at any point never has
// metadata claiming records from shards that weren't uploaded.
func backupPlan(st filedump.State, metaFileName string) (shards []string, meta string) {
	n := st.ShardCount()
	for id := 0; id < n; id++ {
		shards = append(shards, filedump.ShardFileName(id))
	}
	return shards, metaFileName
}

// BackupStore uploads a store from dir to remoteDir.
// The store shouldn't be open for appending during backup.
func (c *Client) BackupStore(ctx context.Context, dir string, remoteDir string, opts *BackupOptions) (*BackupResult, error) {
	timeStart := time.Now()
	metaName := opts.metaFileName()
	st, err := filedump.ReadState(dir, metaName)
	if err != nil {
		return nil, err
	}
	res := &BackupResult{State: st}
	upload := func(name string) error {
		localPath := filepath.Join(dir, name)
		remotePath := remoteJoin(remoteDir, opts.remoteName(name))
		var err error
		if opts != nil && opts.Compress {
			_, err = c.UploadFileBrotliCompressed(ctx, remoteJoin(remoteDir, name), localPath)
		} else {
			_, err = c.UploadFile(ctx, remotePath, localPath)
		}
		if err != nil {
			return fmt.Errorf("upload of '%s' as '%s' failed with '%w'", localPath, remotePath, err)
		}
		res.Uploaded = append(res.Uploaded, remotePath)
		return nil
	}

	shards, meta := backupPlan(st, metaName)
	for id, name := range shards {
		remotePath := remoteJoin(remoteDir, opts.remoteName(name))
		if st.IsSealed(id) {
			exists, err := c.Exists(ctx, remotePath)
			if err != nil {
				return res, err
			}
			if exists {
				res.Skipped = append(res.Skipped, remotePath)
				continue
			}
		}
		if err = upload(name); err != nil {
			return res, err
		}
	}
	if err = upload(meta); err != nil {
		return res, err
	}
	log.EventWithDuration("filedump.backup", time.Since(timeStart), "dir", dir, "remote", remoteDir, "uploaded", len(res.Uploaded), "skipped", len(res.Skipped))
	return res, nil
}

// restoreName returns the local name for object key listed under prefix.
// Only direct children of prefix that are shards or the metadata file
// (possibly with ".br" suffix) belong to the store.
func restoreName(key string, prefix string, metaFileName string) (string, bool) {
	rel, ok := strings.CutPrefix(key, prefix)
	if !ok || rel == "" || strings.Contains(rel, "/") {
		return "", false
	}
	name := strings.TrimSuffix(rel, brotliExt)
	if name == metaFileName {
		return name, true
	}
	if _, ok = filedump.ParseShardFileName(name); ok {
		return name, true
	}
	return "", false
}

// RestoreStore downloads a store from remoteDir to dir.
// Shards are downloaded before metadata. Other objects under remoteDir
// are ignored.
func (c *Client) RestoreStore(ctx context.Context, remoteDir string, dir string, opts *BackupOptions) ([]string, error) {
	timeStart := time.Now()
	// stops the listing goroutine if we return early
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metaName := opts.metaFileName()
	prefix := strings.TrimSuffix(remoteDir, "/")
	if prefix != "" {
		prefix += "/"
	}
	var remoteMeta string
	var restored []string
	for oi := range c.ListObjects(ctx, prefix) {
		if oi.Err != nil {
			return restored, oi.Err
		}
		name, ok := restoreName(oi.Key, prefix, metaName)
		if !ok {
			log.Verbosef("restore: skipping '%s'\n", oi.Key)
			continue
		}
		if name == metaName {
			remoteMeta = oi.Key
			continue
		}
		if err := c.DownloadFileAtomically(ctx, filepath.Join(dir, name), oi.Key); err != nil {
			return restored, err
		}
		restored = append(restored, name)
	}
	if remoteMeta == "" {
		return restored, fmt.Errorf("no metadata file '%s' in '%s'", metaName, remoteDir)
	}
	if err := c.DownloadFileAtomically(ctx, filepath.Join(dir, metaName), remoteMeta); err != nil {
		return restored, err
	}
	restored = append(restored, metaName)
	log.EventWithDuration("filedump.restore", time.Since(timeStart), "dir", dir, "remote", remoteDir, "files", len(restored))
	return restored, nil
}
