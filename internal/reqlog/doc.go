// Package reqlog keeps a bounded, in-memory diagnostic log of the HTTP
// requests issued to a set-top box.
//
// Every request is recorded twice: once when it is issued (Begin) and once
// when its outcome is known (Complete). Both writes go through the Log, which
// is the single owner of the underlying ring buffer. When the buffer is full
// the oldest entry is evicted.
//
// # Usage Example
//
//	log := reqlog.New(200)
//	id := log.Begin(reqlog.KindCommand, "http://10.0.0.5/web/remotecontrol?command=115")
//	// ... issue the request ...
//	log.Complete(id, reqlog.Outcome{StatusCode: 200, Summary: "True"})
//
//	for _, e := range log.Entries(reqlog.Filter{HidePreview: true}) {
//	    fmt.Println(e)
//	}
//
// The log is a side channel: nothing in the control path reads it back.
package reqlog
