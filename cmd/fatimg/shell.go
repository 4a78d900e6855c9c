package main

import (
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/fatimg/fatimg/config"
	"github.com/fatimg/fatimg/errors"
	"github.com/fatimg/fatimg/file_systems/fat16"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

// session is an interactive shell bound to one mounted volume.
type session struct {
	volume *fat16.Volume
	hostFs afero.Fs
	cfg    config.Config
}

func (r *runner) runShell(c *cli.Context) error {
	if err := requireArgs(c, 0, 0); err != nil {
		return err
	}
	return r.withVolume(func(volume *fat16.Volume) error {
		s := &session{volume: volume, hostFs: r.fs, cfg: r.cfg}
		shell := s.build()
		shell.Printf("Mounted %s. Type \"menu\" for the guided menu or \"help\" for commands.\n", r.cfg.Image)
		shell.Run()
		return nil
	})
}

func (s *session) build() *ishell.Shell {
	shell := ishell.New()
	shell.SetPrompt(s.cfg.Shell.Prompt)

	shell.AddCmd(&ishell.Cmd{Name: "menu", Help: "choose an operation from a menu", Func: s.menu})
	shell.AddCmd(&ishell.Cmd{Name: "ls", Help: "list files", Func: s.ls})
	shell.AddCmd(&ishell.Cmd{Name: "cat", Help: "cat NAME: show a file's contents", Func: s.cat})
	shell.AddCmd(&ishell.Cmd{Name: "stat", Help: "stat NAME: show a file's attributes", Func: s.stat})
	shell.AddCmd(&ishell.Cmd{Name: "mv", Help: "mv OLD NEW: rename a file", Func: s.mv})
	shell.AddCmd(&ishell.Cmd{Name: "rm", Help: "rm NAME: delete a file", Func: s.rm})
	shell.AddCmd(&ishell.Cmd{Name: "put", Help: "put HOST_PATH NAME: copy a host file in", Func: s.put})
	shell.AddCmd(&ishell.Cmd{Name: "info", Help: "show volume information", Func: s.info})
	shell.AddCmd(&ishell.Cmd{Name: "check", Help: "check the volume for problems", Func: s.check})
	return shell
}

// argsOrPrompt returns the command's arguments, asking for each one that's
// missing.
func argsOrPrompt(c *ishell.Context, prompts ...string) ([]string, bool) {
	if len(c.Args) > len(prompts) {
		c.Printf("expected at most %d arguments\n", len(prompts))
		return nil, false
	}

	values := make([]string, len(prompts))
	copy(values, c.Args)
	c.ShowPrompt(false)
	defer c.ShowPrompt(true)
	for i := len(c.Args); i < len(prompts); i++ {
		c.Print(prompts[i])
		values[i] = strings.TrimSpace(c.ReadLine())
		if values[i] == "" {
			c.Println("Cancelled.")
			return nil, false
		}
	}
	return values, true
}

func report(c *ishell.Context, err error) {
	if err != nil {
		c.Printf("error: %s\n", err.Error())
	}
}

func (s *session) menu(c *ishell.Context) {
	choices := []string{
		"List the disk's contents",
		"Show a file's contents",
		"Show a file's attributes",
		"Rename a file",
		"Delete a file",
		"Copy a host file into the disk",
	}
	handlers := []func(*ishell.Context){s.ls, s.cat, s.stat, s.mv, s.rm, s.put}

	choice := c.MultiChoice(choices, "What do you want to do?")
	if choice < 0 || choice >= len(handlers) {
		return
	}
	c.Args = nil
	handlers[choice](c)
}

func (s *session) ls(c *ishell.Context) {
	files, err := s.volume.List()
	if err != nil {
		report(c, err)
		return
	}
	var out strings.Builder
	report(c, printListing(&out, files, "text"))
	c.Print(out.String())
}

func (s *session) cat(c *ishell.Context) {
	args, ok := argsOrPrompt(c, "File name: ")
	if !ok {
		return
	}
	data, err := s.volume.ReadFile(args[0])
	if err != nil {
		report(c, err)
		return
	}
	if len(data) == 0 {
		c.Println("(empty file)")
		return
	}
	c.Println(string(data))
}

func (s *session) stat(c *ishell.Context) {
	args, ok := argsOrPrompt(c, "File name: ")
	if !ok {
		return
	}
	attrs, err := s.volume.Attributes(args[0])
	if err != nil {
		report(c, err)
		return
	}
	var out strings.Builder
	report(c, printAttributes(&out, attrs, "text", s.cfg.Output))
	c.Print(out.String())
}

func (s *session) mv(c *ishell.Context) {
	args, ok := argsOrPrompt(c, "Current name: ", "New name: ")
	if !ok {
		return
	}
	if err := s.volume.Rename(args[0], args[1]); err != nil {
		report(c, err)
		return
	}
	c.Printf("Renamed %s to %s.\n", strings.ToUpper(args[0]), strings.ToUpper(args[1]))
}

func (s *session) rm(c *ishell.Context) {
	args, ok := argsOrPrompt(c, "File to delete: ")
	if !ok {
		return
	}
	name := args[0]

	if s.cfg.Shell.ConfirmDelete {
		c.ShowPrompt(false)
		c.Printf("Really delete %s? (y/n): ", strings.ToUpper(name))
		answer := strings.ToLower(strings.TrimSpace(c.ReadLine()))
		c.ShowPrompt(true)
		if answer != "y" && answer != "yes" {
			c.Println("Cancelled.")
			return
		}
	}

	if err := s.volume.Delete(name); err != nil {
		report(c, err)
		return
	}
	c.Printf("Deleted %s.\n", strings.ToUpper(name))
}

func (s *session) put(c *ishell.Context) {
	args, ok := argsOrPrompt(c, "Host file: ", "Name on disk: ")
	if !ok {
		return
	}
	if err := s.volume.CreateFromHost(s.hostFs, args[0], args[1]); err != nil {
		report(c, err)
		return
	}
	attrs, err := s.volume.Attributes(args[1])
	if err != nil {
		report(c, err)
		return
	}
	c.Printf("Created %s (%d bytes).\n", attrs.Name, attrs.Size)
}

func (s *session) info(c *ishell.Context) {
	stat, err := s.volume.Stat()
	if err != nil {
		report(c, err)
		return
	}
	var out strings.Builder
	report(c, printStat(&out, stat, "text"))
	c.Print(out.String())
}

func (s *session) check(c *ishell.Context) {
	result, err := s.volume.Check()
	var out strings.Builder
	report(c, printCheckReport(&out, result, "text"))
	c.Print(out.String())
	if err != nil && !errors.Is(err, errors.ErrInconsistent) {
		report(c, err)
	}
}
