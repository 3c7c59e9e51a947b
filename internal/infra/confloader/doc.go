// Package confloader loads configuration from layered sources.
//
// Sources, lowest priority first:
//
//  1. Values already present in the target struct (defaults)
//  2. A YAML configuration file
//  3. Environment variables
//
// Environment variables carry a prefix (PAGESERVER_ by default). A double
// underscore separates nesting levels, so single underscores can appear
// inside key names:
//
//	PAGESERVER_OBJECT_STORE__BADGER__GC_INTERVAL=10m  ->  object_store.badger.gc_interval
//
// Watcher notifies callbacks when the configuration file changes; the
// server uses it to reload the log level only.
package confloader
