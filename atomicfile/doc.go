/*
Package atomicfile replaces a file's content so that a crash at any
point leaves either the old or the new content, never a mix.

To write to files in a robust way we should:

- handle error returned by `Close()`

- handle error returned by `Write()`

- remove partially written file if `Write()` or `Close()` returned an error

Most callers only need WriteFile:

	err := atomicfile.WriteFile(path, data)

For streaming writes use File:

	f, err := atomicfile.New(path)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	if _, err = io.Copy(f, r); err != nil {
		return err
	}
	return f.Close()
*/
package atomicfile
