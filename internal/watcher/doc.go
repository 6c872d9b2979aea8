// Package watcher provides filesystem change notification for the document
// corpus. The hybrid watcher prefers fsnotify's OS-level events and falls back
// to periodic polling when the native mechanism is unavailable (network
// mounts, inotify watch exhaustion, some container filesystems).
//
// Raw events are noisy: editors write temp files, a single save can surface
// as several MODIFY events, and a rename arrives as DELETE plus CREATE. The
// debouncer coalesces events per path over a settling window so that the
// consumer sees one meaningful event per file per burst, delivered in
// batches.
//
// Filtering mirrors the scanner: hidden path segments, unsupported
// extensions, and exclude patterns are dropped before debouncing, so the set
// of watched files stays consistent with what indexing would pick up.
package watcher
