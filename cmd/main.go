package main

import "github.com/adanyl0v/tasktracker/internal/app"

func main() {
	app.InitDefaultLogger()
	app.MustReadEnv()
	app.MustInitApplicationLogger()
	defer app.CloseLogger()

	db := app.MustOpenSQLite()
	defer app.CloseSQLite(db)

	app.MustRunShell(db)
}
