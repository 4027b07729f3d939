// Command hsldump prints every stage of compiling one Hassel unit: the
// tokens, the parsed statements and their tree, the generated assembly and
// the symbols.
package main

import (
	"fmt"
	"os"
	"regexp"

	"github.com/sanity-io/litter"

	"hasselc/pkg/compiler"
	"hasselc/pkg/config"
	"hasselc/pkg/utils"
)

const testSource = `memory out: u8 @ 0x4000;

def add(a: u8, b: u8): u8
    return a + b;
end

def main(): void
    out = add(10, 20);
end
`

var astDumper = litter.Options{
	StripPackageNames: true,
	HidePrivateFields: true,
	FieldExclusions:   regexp.MustCompile(`^Src$`),
}

func main() {
	name, src := "sample", testSource
	cfg := config.Default()
	if len(os.Args) > 1 {
		file, err := utils.ReadSource(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		name, src = file.Name, file.Text

		found, err := config.FindAndLoad(file.Dir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config error:", err)
			os.Exit(1)
		}
		if found != nil {
			cfg = found
		}
	}

	fmt.Printf("Source:\n%s\n", src)

	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	stmts, err := compiler.Parse(tokens)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		os.Exit(1)
	}

	fmt.Println("Statements")
	for _, s := range stmts {
		fmt.Println(" ", s)
	}
	fmt.Println()

	fmt.Println("AST")
	fmt.Println(astDumper.Sdump(stmts))
	fmt.Println()

	c := compiler.New(cfg)
	if err := c.ParseUnit(name, src); err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		os.Exit(1)
	}
	out, err := c.Compile()
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile error:", err)
		os.Exit(1)
	}
	for _, w := range out.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", c.Describe(w.Tag), w.Message)
	}

	fmt.Println("Generated Assembly")
	fmt.Print(out.Asm)
	fmt.Println()
	fmt.Print(out.Program.Symbols)

	fmt.Println()
	fmt.Println("Labels")
	for _, l := range out.LabelsByAddress() {
		fmt.Printf("  $%04X %s\n", out.Labels[l], l)
	}
}
