// Package terminal tracks remote terminal sessions for a set of projects.
//
// A Manager keeps one bucket of tabs per project, persists the tab order
// through an order.Store and holds one transport connection per session.
// Connections move through connecting, ready, error and closed. A
// connection that drops while its session is still tracked is redialed
// after a fixed delay, at most one pending attempt per session. Inbound
// frames are fanned out to subscribers by a Hub.
//
// Usage:
//
//	mgr, err := terminal.NewManager(terminal.Options{
//		API:    client,
//		Dialer: ws.NewDialer(5*time.Second, token),
//		Store:  store,
//		Logger: logger,
//	})
//	if err != nil {
//		return err
//	}
//	defer mgr.Close()
//
//	if err := mgr.LoadSessions(ctx, projectID); err != nil {
//		return err
//	}
//	unsubscribe := mgr.Subscribe(mgr.ActiveTabID(projectID), func(f ws.Frame) {
//		os.Stdout.Write(f.Bytes())
//	})
//	defer unsubscribe()
package terminal
