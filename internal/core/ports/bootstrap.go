package ports

import "context"

// Bootstrapper is anything that mounts a session: reads the token store and
// revalidates what it finds.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) error
}

// BootstrapJob asks the queue to mount one browser's session.
type BootstrapJob struct {
	BrowserID string
	Session   Bootstrapper
}

// BootstrapQueue runs bootstrap jobs off the request path.
type BootstrapQueue interface {
	Enqueue(job BootstrapJob)
}
