package main

import "github.com/devaudit/dat/cmd/dat"

func main() { dat.Execute() }
