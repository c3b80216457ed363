// Package cli provides the command-line interface of tarjama: cobra
// commands, viper configuration and the wiring of the store, merge engine
// and HTTP server behind them.
package cli
