package repos

// StoreError marks a backing-store I/O failure. It is job-fatal for
// ingestion and eligible for an external retry of the whole job.
type StoreError struct {
  Op  string
  Err error
}

func (e *StoreError) Error() string {
  if e.Err != nil {
    return "store: " + e.Op + ": " + e.Err.Error()
  }
  return "store: " + e.Op
}

func (e *StoreError) Unwrap() error { return e.Err }

func wrapStore(op string, err error) error {
  if err == nil {
    return nil
  }
  return &StoreError{Op: op, Err: err}
}
