package main

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/repr"
	"github.com/llir/llvm/ir"
	"github.com/pontaoski/kalei/ast"
	"github.com/pontaoski/kalei/codegen"
	"github.com/pontaoski/kalei/eval"
	"github.com/pontaoski/kalei/lexer"
	"github.com/pontaoski/kalei/parser"
	"github.com/urfave/cli/v2"
	"github.com/ztrue/tracerr"
	"gopkg.in/yaml.v2"
)

const manifestName = "Kalei Module Information"

var diag = log.New(os.Stderr, "", 0)

type kaleiModule struct {
	Package string `yaml:"Package"`
}

// readManifest returns the manifest in dir, or ok == false if there is none.
func readManifest(dir string) (doc kaleiModule, ok bool, err error) {
	data, err := ioutil.ReadFile(filepath.Join(dir, manifestName))
	if os.IsNotExist(err) {
		return kaleiModule{}, false, nil
	}
	if err != nil {
		return kaleiModule{}, false, err
	}

	err = yaml.Unmarshal(data, &doc)
	return doc, err == nil, err
}

func writeManifest(dir string, doc kaleiModule) error {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(filepath.Join(dir, manifestName), out, 0644)
}

// moduleName prefers the manifest next to the source file and falls back to
// the file name without its extension.
func moduleName(path string) (string, error) {
	doc, ok, err := readManifest(filepath.Dir(path))
	if err != nil {
		return "", err
	}
	if ok && doc.Package != "" {
		return doc.Package, nil
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), nil
}

// compile parses and lowers one source file. The returned diagnostics cover
// every definition that failed; the module holds the ones that succeeded.
func compile(path string) (*ir.Module, ast.AST, []error, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, ast.AST{}, nil, tracerr.Wrap(err)
	}
	defer handle.Close()

	name, err := moduleName(path)
	if err != nil {
		return nil, ast.AST{}, nil, tracerr.Wrap(err)
	}

	p := parser.NewParser(lexer.NewLexer(handle, path))
	tree, diags := p.Parse()

	m, lowerDiags := codegen.Lower(tree, name)
	return m, tree, append(diags, lowerDiags...), nil
}

// printTrace writes err and its stack to the diagnostic stream.
func printTrace(err error) {
	diag.Print(tracerr.SprintSourceColor(err))
}

func report(diags []error, trace bool) {
	for _, err := range diags {
		diag.Printf("Error: %s", tracerr.Unwrap(err))
		if trace {
			printTrace(err)
		}
	}
}

func main() {
	app := &cli.App{
		Name:  "kalei",
		Usage: "kalei compiler",
		ExitErrHandler: func(context *cli.Context, err error) {
			if err == nil {
				return
			}
			if msg := err.Error(); msg != "" {
				diag.Printf("Error: %s", msg)
			}
			os.Exit(1)
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "init a directory",
				Action: func(c *cli.Context) error {
					name := c.Args().First()
					if name == "" {
						return cli.Exit("no module name provided", 1)
					}
					if err := writeManifest(".", kaleiModule{Package: name}); err != nil {
						return cli.Exit(fmt.Sprintf("error creating %s: %s", manifestName, err), 1)
					}
					return nil
				},
			},
			{
				Name:      "build",
				Usage:     "compile a source file to LLVM IR",
				ArgsUsage: "<source-file> <output-file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dump",
						Usage: "print the IR to stdout as well",
					},
					&cli.BoolFlag{
						Name:  "ast",
						Usage: "print the parse tree to stderr",
					},
					&cli.BoolFlag{
						Name:  "library",
						Usage: "embed the function table for typeinfo",
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "print a stack trace with each diagnostic",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("usage: kalei build <source-file> <output-file>", 1)
					}
					source, out := c.Args().Get(0), c.Args().Get(1)

					m, tree, diags, err := compile(source)
					if err != nil {
						printTrace(err)
						return cli.Exit("", 1)
					}
					if c.Bool("ast") {
						repr.New(os.Stderr).Println(tree)
					}
					if len(diags) > 0 {
						report(diags, c.Bool("trace"))
						return cli.Exit("", 1)
					}

					if c.Bool("library") {
						registerTypeInfoWithModule(typeInfoOf(m), m)
					}

					module := m.String()
					if c.Bool("dump") {
						fmt.Println(module)
					}

					if err := ioutil.WriteFile(out, []byte(module), 0644); err != nil {
						printTrace(tracerr.Wrap(err))
						return cli.Exit("", 1)
					}
					return nil
				},
			},
			{
				Name:      "run",
				Usage:     "compile a source file and evaluate its main function",
				ArgsUsage: "<source-file> [arguments...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "entry",
						Value: "main",
					},
					&cli.BoolFlag{
						Name: "trace",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return cli.Exit("usage: kalei run <source-file> [arguments...]", 1)
					}

					m, _, diags, err := compile(c.Args().First())
					if err != nil {
						printTrace(err)
						return cli.Exit("", 1)
					}
					if len(diags) > 0 {
						report(diags, c.Bool("trace"))
						return cli.Exit("", 1)
					}

					var args []float64
					for _, arg := range c.Args().Tail() {
						v, err := strconv.ParseFloat(arg, 64)
						if err != nil {
							return cli.Exit(fmt.Sprintf("argument %q is not a number", arg), 1)
						}
						args = append(args, v)
					}

					machine := eval.New(m)
					machine.Externs = eval.Builtins(os.Stdout)
					ret, err := machine.Call(c.String("entry"), args...)
					if err != nil {
						return err
					}

					fmt.Println(ret)
					return nil
				},
			},
			{
				Name:      "typeinfo",
				Usage:     "dump the function table from a shared library",
				ArgsUsage: "<shared-library>",
				Description: "Reads the table that build --library embeds in the IR. kalei only writes\n" +
					"the .ll file; link it into a shared object with an external toolchain\n" +
					"(for example clang -shared -fPIC out.ll -o libout.so) before running this.",
				Action: func(c *cli.Context) error {
					file := c.Args().Get(0)
					data, err := getTypeInfoFromFile(file)
					if err != nil {
						return err
					}
					repr.Println(data)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		diag.Fatalf("Error: %s", err)
	}
}
