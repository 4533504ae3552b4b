// Package process supervises the pwrstatd daemon when the service is
// configured to run it itself (status.daemon.managed) instead of relying on
// the host's init system.
//
// A Manager starts the binary in its own process group and logs its output
// at debug level. If the process exits without Stop it is restarted after
// an exponentially growing delay, until MaxRestartAttempts consecutive
// restarts have failed; a run longer than StableThreshold resets the count.
// An optional health check (for pwrstatd: "does the pwrstat CLI still get
// an answer") kills a hung daemon so the restart policy can take over.
//
//	mgr := process.NewManager(process.ConfigFrom(cfg.Status.Daemon))
//	mgr.SetLogger(log)
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
