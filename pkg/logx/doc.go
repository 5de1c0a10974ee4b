// Package logx is preppertrack's structured logger: a thin layer over
// zerolog with typed Field helpers, a short file:line caller, and a Service
// whose console/file sinks and level can be swapped while loggers derived
// from it stay live.
package logx
