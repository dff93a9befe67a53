// Package config loads notifyhub settings from the process environment.
//
// Every package declares its own Config struct tagged for caarlos0/env, and
// the binary loads them through Load or MustLoad:
//
//	var qcfg queue.Config
//	config.MustLoad(&qcfg)
//
// A .env file in the working directory is read once, before the first
// parse, when it exists. Parsed values are cached per struct type so repeated
// loads of the same type are free and consistent.
package config
