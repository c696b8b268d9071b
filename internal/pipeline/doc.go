// Package pipeline implements the stages between "the viewport may have
// changed" and "these thumbnails are ready":
//
//	Coalescer  -> trailing debounce of viewport signals into settle signals
//	Planner    -> visible rows snapshot, cache hits taken out of the cache
//	Supervisor -> generation supersede, parallel decode, failures as data
//	Batcher    -> fixed-window batching, never emits an empty batch
//
// Every LoadBatch is a generation. Submitting a new batch supersedes the
// previous one: its pending decodes are cancelled and any result it still
// produces is dropped instead of delivered.
package pipeline
