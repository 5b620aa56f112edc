package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/viktor-ferenczi/genshi-compiler/pkg/compiler"
)

const version = "0.1.0"

func main() {
	output := flag.String("o", "", "output file (default: stdout)")
	arguments := flag.String("args", "", "parameter list of the render function, e.g. \"lang, user_count\"")
	identifier := flag.String("name", "", "template identifier (default: derived from the file name)")
	standard := flag.String("standard", compiler.StandardXML, "template standard: xml or xhtml")
	showVersion := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "genshic - XML template to source code compiler\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: genshic [options] <template.xml>\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("genshic version %s\n", version)
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	config := compiler.ConfigFromEnvironment()
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "genshic: %v\n", err)
		os.Exit(1)
	}
	compiler.SetGlobalConfig(config)

	c := compiler.NewWithConfig(config)
	err := c.LoadFile(flag.Arg(0), compiler.LoadOptions{
		Identifier: *identifier,
		Standard:   *standard,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "genshic: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	if *output != "" {
		out, err = os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "genshic: %v\n", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	if err := c.CompileOutput(out, *arguments); err != nil {
		fmt.Fprintf(os.Stderr, "genshic: %v\n", err)
		os.Exit(1)
	}
}
