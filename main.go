package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ComedicChimera/olive"
	"github.com/sanity-io/litter"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"hasselc/pkg/compiler"
	"hasselc/pkg/config"
	"hasselc/pkg/cpu"
	"hasselc/pkg/report"
	"hasselc/pkg/rom"
	"hasselc/pkg/utils"
)

const Version = "0.3.0"

const defaultSteps = 1_000_000

// commonlog verbosity per --loglevel value
var verbosity = map[string]int{
	"silent":  -4,
	"error":   -2,
	"warn":    -1,
	"verbose": 2,
}

func main() {
	cli := olive.NewCLI("hasselc", "hasselc compiles Hassel programs for the 6502", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the compiler log level", false, []string{"silent", "error", "warn", "verbose"})
	logLvlArg.SetDefaultValue("warn")

	buildCmd := cli.AddSubcommand("build", "compile a program into a ROM artifact", true)
	buildCmd.AddPrimaryArg("source", "the program unit to compile", true)
	buildCmd.AddStringArg("runtime", "rt", "a unit linked after the program", false)
	buildCmd.AddStringArg("config", "c", "the configuration file (default: nearest hasselc.toml)", false)
	buildCmd.AddStringArg("out", "o", "the artifact path (default: source with .rom)", false)
	buildCmd.AddFlag("asm", "s", "also write the generated assembly")

	runCmd := cli.AddSubcommand("run", "compile a program, or load an artifact, and run it", true)
	runCmd.AddPrimaryArg("source", "the program unit or .rom artifact to run", true)
	runCmd.AddStringArg("runtime", "rt", "a unit linked after the program", false)
	runCmd.AddStringArg("config", "c", "the configuration file (default: nearest hasselc.toml)", false)
	runCmd.AddStringArg("steps", "n", "the instruction budget", false)
	runCmd.AddStringArg("dump", "d", "memory to print after the run, as addr:len", false)

	dumpCmd := cli.AddSubcommand("dump", "print an intermediate form of a unit", true)
	dumpCmd.AddPrimaryArg("source", "the unit to inspect", true)
	stageArg := dumpCmd.AddSelectorArg("stage", "st", "the form to print", false, []string{"tokens", "ast", "symbols", "asm"})
	stageArg.SetDefaultValue("asm")

	cli.AddSubcommand("version", "print the hasselc version", false)

	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		report.PrintErrorMessage("CLI Usage Error", err)
		os.Exit(2)
	}

	loglevel := result.Arguments["loglevel"].(string)
	level, _ := report.ParseLogLevel(loglevel)
	report.SetLogLevel(level)
	commonlog.Configure(verbosity[loglevel], nil)

	subcmdName, subResult, _ := result.Subcommand()
	ok := true
	switch subcmdName {
	case "build":
		ok = execBuildCommand(subResult)
	case "run":
		ok = execRunCommand(subResult)
	case "dump":
		ok = execDumpCommand(subResult)
	case "version":
		report.PrintInfoMessage("hasselc version", Version)
	}
	if !ok {
		os.Exit(1)
	}
}

func stringArg(result *olive.ArgParseResult, name string) string {
	if v, ok := result.Arguments[name]; ok {
		return v.(string)
	}
	return ""
}

// loadConfig uses the explicit file when given, else the nearest
// hasselc.toml above dir, else the defaults.
func loadConfig(explicit, dir string) (*config.Config, error) {
	if explicit != "" {
		return config.Load(explicit)
	}
	cfg, err := config.FindAndLoad(dir)
	if err != nil || cfg != nil {
		return cfg, err
	}
	return config.Default(), nil
}

// compileFiles parses the program and the optional runtime unit and builds
// them. Diagnostics are printed here.
func compileFiles(result *olive.ArgParseResult) (*compiler.Compiler, *compiler.Output, *config.Config, bool) {
	srcPath, _ := result.PrimaryArg()
	prog, err := utils.ReadSource(srcPath)
	if err != nil {
		report.PrintErrorMessage("File Error", err)
		return nil, nil, nil, false
	}

	cfg, err := loadConfig(stringArg(result, "config"), prog.Dir)
	if err != nil {
		report.PrintErrorMessage("Config Error", err)
		return nil, nil, nil, false
	}

	files := []*utils.SourceFile{prog}
	if rt := stringArg(result, "runtime"); rt != "" {
		runtime, err := utils.ReadSource(rt)
		if err != nil {
			report.PrintErrorMessage("File Error", err)
			return nil, nil, nil, false
		}
		files = append(files, runtime)
	}

	c := compiler.New(cfg)
	for _, f := range files {
		if err := c.ParseUnit(f.Name, f.Text); err != nil {
			printFailure(c, err)
			return nil, nil, nil, false
		}
	}

	out, err := c.Compile()
	if err != nil {
		printFailure(c, err)
		return nil, nil, nil, false
	}
	report.PrintDiagnostics(c.Units(), out.Warnings)
	return c, out, cfg, true
}

func printFailure(c *compiler.Compiler, err error) {
	if ds := compiler.DiagnosticsOf(err); ds != nil {
		report.PrintDiagnostics(c.Units(), ds)
		return
	}
	report.PrintErrorMessage("Build Error", err)
}

func execBuildCommand(result *olive.ArgParseResult) bool {
	c, out, cfg, ok := compileFiles(result)
	if !ok {
		return false
	}

	srcPath, _ := result.PrimaryArg()
	outPath := stringArg(result, "out")
	if outPath == "" {
		outPath = utils.OutputPath(srcPath, ".rom")
	}

	artifact := rom.New(utils.OutputPath(c.Units()[0].Name, ""), cfg, out, c.Describe)
	if err := artifact.Write(outPath); err != nil {
		report.PrintErrorMessage("Write Error", err)
		return false
	}
	if result.HasFlag("asm") {
		asmPath := utils.OutputPath(outPath, ".s")
		if err := os.WriteFile(asmPath, []byte(out.Asm), 0o644); err != nil {
			report.PrintErrorMessage("Write Error", err)
			return false
		}
	}

	report.PrintInfoMessage("Built", fmt.Sprintf("%s (%d bytes of image, %d labels)", outPath, len(out.Image), len(out.Labels)))
	return true
}

func execRunCommand(result *olive.ArgParseResult) bool {
	srcPath, _ := result.PrimaryArg()

	var artifact *rom.Artifact
	if strings.HasSuffix(srcPath, ".rom") {
		a, err := rom.Read(srcPath)
		if err != nil {
			report.PrintErrorMessage("Load Error", err)
			return false
		}
		artifact = a
	} else {
		c, out, cfg, ok := compileFiles(result)
		if !ok {
			return false
		}
		artifact = rom.New(c.Units()[0].Name, cfg, out, c.Describe)
	}

	steps := defaultSteps
	if s := stringArg(result, "steps"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			report.PrintErrorMessage("CLI Usage Error", fmt.Errorf("invalid --steps value %q", s))
			return false
		}
		steps = n
	}

	vm := cpu.NewCPU()
	artifact.Boot(vm)
	err := vm.RunUntilDone(steps)

	where, _ := artifact.Where(vm.PC)
	status := fmt.Sprintf("PC=$%04X A=$%02X X=$%02X Y=$%02X SP=$%02X steps=%d %s", vm.PC, vm.A, vm.X, vm.Y, vm.SP, vm.Steps, where)
	switch {
	case errors.Is(err, cpu.ErrStepLimit):
		report.PrintWarningMessage("Still running", status)
	case err != nil:
		report.PrintErrorMessage("Fault", fmt.Errorf("%w (%s)", err, status))
		return false
	default:
		report.PrintInfoMessage("Halted", status)
	}

	if spec := stringArg(result, "dump"); spec != "" {
		addr, length, err := parseDumpSpec(spec)
		if err != nil {
			report.PrintErrorMessage("CLI Usage Error", err)
			return false
		}
		fmt.Print(hexDump(vm.Memory[:], addr, length))
	}
	return true
}

// parseDumpSpec reads addr:len, each decimal or 0x/$ hex.
func parseDumpSpec(spec string) (uint16, int, error) {
	a, l, ok := strings.Cut(spec, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid --dump value %q, want addr:len", spec)
	}
	parse := func(s string) (uint64, error) {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "$") {
			s = "0x" + s[1:]
		}
		return strconv.ParseUint(s, 0, 32)
	}
	addr, err := parse(a)
	if err != nil || addr > 0xFFFF {
		return 0, 0, fmt.Errorf("invalid --dump address %q", a)
	}
	length, err := parse(l)
	if err != nil || addr+length > 0x10000 {
		return 0, 0, fmt.Errorf("invalid --dump length %q", l)
	}
	return uint16(addr), int(length), nil
}

func hexDump(mem []byte, addr uint16, length int) string {
	var sb strings.Builder
	for off := 0; off < length; off += 16 {
		fmt.Fprintf(&sb, "%04X:", int(addr)+off)
		for i := off; i < off+16 && i < length; i++ {
			fmt.Fprintf(&sb, " %02X", mem[int(addr)+i])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

var astDumper = litter.Options{
	StripPackageNames: true,
	HidePrivateFields: true,
	FieldExclusions:   regexp.MustCompile(`^Src$`),
}

func execDumpCommand(result *olive.ArgParseResult) bool {
	srcPath, _ := result.PrimaryArg()
	src, err := utils.ReadSource(srcPath)
	if err != nil {
		report.PrintErrorMessage("File Error", err)
		return false
	}

	switch result.Arguments["stage"].(string) {
	case "tokens":
		tokens, err := compiler.Lex(src.Text)
		if err != nil {
			report.PrintErrorMessage("Lex Error", err)
			return false
		}
		for _, tok := range tokens {
			fmt.Println(tok)
		}
		return true
	case "ast":
		tokens, err := compiler.Lex(src.Text)
		if err == nil {
			var stmts []compiler.Stmt
			if stmts, err = compiler.Parse(tokens); err == nil {
				fmt.Println(astDumper.Sdump(stmts))
				return true
			}
		}
		report.PrintErrorMessage("Parse Error", err)
		return false
	}

	cfg, err := loadConfig("", src.Dir)
	if err != nil {
		report.PrintErrorMessage("Config Error", err)
		return false
	}
	c := compiler.New(cfg)
	if err := c.ParseUnit(src.Name, src.Text); err != nil {
		printFailure(c, err)
		return false
	}

	if result.Arguments["stage"].(string) == "symbols" {
		prog, diags := c.Check()
		report.PrintDiagnostics(c.Units(), diags)
		if diags.HasErrors() {
			return false
		}
		fmt.Print(prog.Symbols)
		return true
	}

	out, err := c.Compile()
	if err != nil {
		printFailure(c, err)
		return false
	}
	fmt.Print(out.Asm)
	return true
}
