package replica

// StoreConnectionError reports a connectivity failure against the source or
// target store. It is never retried; callers decide whether to proceed with
// other tables.
type StoreConnectionError struct {
	Store string // "source" or "target"
	Err   error
}

func (e *StoreConnectionError) Error() string {
	return "connection to " + e.Store + " store failed: " + e.Err.Error()
}

func (e *StoreConnectionError) Unwrap() error { return e.Err }

// QueryError reports a statement rejected by a store outside the upsert
// transaction (watermark read, change fetch, metadata lookup).
type QueryError struct {
	Operation string
	Err       error
}

func (e *QueryError) Error() string {
	return e.Operation + " query failed: " + e.Err.Error()
}

func (e *QueryError) Unwrap() error { return e.Err }

// UpsertError reports a failure while staging or reconciling a batch. When it
// is returned the target table is unchanged: any open transaction has been
// rolled back before propagation.
type UpsertError struct {
	Schema string
	Table  string
	Err    error
}

func (e *UpsertError) Error() string {
	return "upsert into " + e.Schema + "." + e.Table + " failed: " + e.Err.Error()
}

func (e *UpsertError) Unwrap() error { return e.Err }
