// Package bootstrap runs a caseflow process: it validates the typed config,
// starts registered components in order, runs lifecycle hooks, and shuts
// everything down on a signal or when a finite task returns.
//
//	app, err := bootstrap.NewApp(cfg)
//	app.RegisterComponent(db)
//	app.OnReady(startScheduler)
//	err = app.Run(ctx)
package bootstrap
