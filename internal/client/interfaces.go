package client

// Runner is a process that blocks until it is told to stop. The agent binary
// only needs this much of App.
type Runner interface {
	Run() error
}

var _ Runner = (*App)(nil)
