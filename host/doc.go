// Package host implements a reference host that drives one particle
// through the boundary protocol and records everything the particle sends
// back.
//
// A Runtime owns the particle's guest, an entity store, a set of service
// providers, and a URL map:
//
//	rt := host.New(host.Options{URLs: map[string]string{"$app": "https://app.test"}})
//	err := rt.Start(ctx, "HandleSyncUpdateTest", []host.Connection{
//	    {Handle: "input1", Mode: handle.ModeRead},
//	    {Handle: "output", Mode: handle.ModeWrite},
//	})
//	err = rt.Sync("input1", encoded)
//	for _, m := range rt.Drain() {
//	    fmt.Println(m)
//	}
//
// Dereference and service requests are queued, never answered on the
// particle's stack. Pump answers them, FIFO or LIFO, the latter being a
// convenient way to exercise out-of-order responses.
//
// # Scenarios
//
// Scenario files describe a whole session in TOML:
//
//	particle = "AutoRenderTest"
//
//	[[handles]]
//	handle = "data"
//	mode = "read"
//	schema = "Data"
//
//	[[steps]]
//	op = "sync"
//	handle = "data"
//
//	[[steps]]
//	op = "update"
//	handle = "data"
//	entity = { id = "d1", fields = { txt = "hello" } }
//
// A step may set expect_error to an error kind, such as
// "unregistered_handle", to assert a failure.
package host
