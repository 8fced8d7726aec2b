package qrep

/*
Regulator is implemented by the controls that sit between the trial loop and
the backend. Each one observes the device metrics after every job and decides
whether the next submission should be held back.
*/
type Regulator interface {
	// Observe hands the regulator the latest device metrics.
	Observe(metrics *Metrics)

	// Limit returns true if the next submission should be held back.
	Limit() bool

	// Renormalize attempts to return the regulator to normal operation.
	Renormalize()
}
