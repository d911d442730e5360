// Package channel is the GUID-addressed handle over one log store. Appends go
// straight to the store or, through Persist, via the write-ahead queue.
package channel
