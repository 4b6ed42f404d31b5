// The [pbgateway] package fronts a PocketBase server with a single admin session.
//
// # Sessions
//
// A [Client] logs in with admin credentials through [Client.Authenticate], which retries a fixed
// number of times with a constant delay between attempts. [Client.EnsureAuth] is the cheap guard to
// call before any PocketBase operation: it returns immediately while the session is valid and logs in
// again otherwise.
//
// A token carrying a JWT exp claim is treated as expired a little before that deadline. A 401 answer
// from PocketBase, or a failed health probe while connected, also invalidates the session.
//
// # Request Queue
//
// Work handed to [Client.QueueRequest] or [Queue] runs one callback at a time, in submission order,
// with a minimum pause after each callback. Use it to keep bursts of calls from overloading a small
// PocketBase instance. A failing callback only fails its own result.
//
// # Health
//
// Every client runs a background probe against PocketBase's health endpoint. The probe logs only when
// reachability changes. [Client.Cleanup] stops it; [Client.Close] also drains the queue.
//
// # Records
//
// The [github.com/yuanzhaoK/admin-platform-sub000/pkg/records] package builds typed record CRUD on top
// of any [Executor], including the [Client] itself.
package pbgateway
