// package playback drives a YouTube-capable TV through the lounge remote-control API.
//
// A [Session] plays and queues videos on a paired screen; [Shuffle] builds a bounded random queue
// from a playlist and [Listener] reports now-playing changes.
package playback
