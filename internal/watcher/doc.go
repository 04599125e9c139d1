// Package watcher re-runs a view whenever the documents under a directory
// change.
//
// An FSWatcher turns fsnotify events into debounced batches of FileEvents
// for the files that match the input globs. A Session holds the rows each
// file produced and, for every batch, re-reads only the changed files before
// handing the complete, file-ordered row set to a callback.
//
// Usage:
//
//	w, err := watcher.New(watcher.Options{Include: cfg.Input.Include})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	s := watcher.NewSession(dir, run, cfg.Input.Include, cfg.Input.Exclude, logger)
//	return s.Watch(ctx, w, func(u watcher.Update) error {
//	    return output.Encode(os.Stdout, output.FormatNDJSON, u.Rows)
//	})
package watcher
