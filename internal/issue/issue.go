// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	RootRequiredId Id = iota + 1
	SystemdNotFoundId
	AptNotFoundId
	PythonNotFoundId
	ConfigLoadFailedId
	LockHeldId
	AccountDriftId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to look up the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // links to relevant documentation, may be empty
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	rootRequiredIssue = &Issue{
		id: RootRequiredId,
		mdMsg: `
# Root privileges required!

hostprep creates system accounts, writes under /etc, and talks to systemd.
All of that needs root.

## Things you can try:
- Re-run with sudo:
~~~
$ sudo hostprep provision
~~~
- Inspect what would happen first, without privileges:
~~~
$ hostprep provision --dry-run
$ hostprep render unit
~~~`,
	}

	systemdNotFoundIssue = &Issue{
		id: SystemdNotFoundId,
		mdMsg: `
# systemctl not found!

hostprep manages the application as a systemd service, but systemctl is not
on PATH. The target host is probably not running systemd (container image,
minimal distro, WSL1).

## Things you can try:
- Provision a host that boots with systemd (any stock Ubuntu/Debian VM)
- If this is a container, run the app under your container supervisor
  instead of using hostprep`,
	}

	aptNotFoundIssue = &Issue{
		id: AptNotFoundId,
		mdMsg: `
# apt-get not found!

hostprep installs OS packages with apt-get and currently supports
Debian-family hosts only.

## Things you can try:
- Provision a Debian or Ubuntu host
- Pre-install the required packages (python3, python3-venv, python3-pip,
  curl) manually, then re-run; the package stage is the only apt consumer`,
	}

	pythonNotFoundIssue = &Issue{
		id: PythonNotFoundId,
		mdMsg: `
# python3 not found!

The configured python interpreter does not exist, so the isolated runtime
environment cannot be created.

## Things you can try:
- Let the package stage install it (default package list includes python3)
- Point 'python_bin' in your config at the right interpreter:
~~~cue
python_bin: "/usr/bin/python3.12"
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Your hostprep config file contains syntax errors or invalid values.

## Common issues:
- Invalid CUE syntax (missing quotes, braces, etc.)
- Unknown field names
- Out-of-range values (port must be 1-65535, workers must be positive)

## Things you can try:
- Check the error message above for the specific field
- Show the effective configuration:
~~~
$ hostprep config show
~~~

## Example of a valid config:
~~~cue
service_name: "ec2-api"
app_dir:      "/home/ubuntu/app"
port:         8000
workers:      4
~~~`,
	}

	lockHeldIssue = &Issue{
		id: LockHeldId,
		mdMsg: `
# Another provisioning run is in progress!

hostprep holds an exclusive lock for the duration of a run so two operators
cannot interleave package installs and service restarts on the same host.

## Things you can try:
- Wait for the other run to finish and re-run
- If you are sure no other run is active, the lock is released automatically
  when the owning process exits; check for a stale hostprep process`,
	}

	accountDriftIssue = &Issue{
		id: AccountDriftId,
		mdMsg: `
# Service account differs from the expected shape!

The service account already exists but its login shell or primary group does
not match what hostprep would have created. Existing accounts are never
modified, so this is reported and provisioning continues.

## Things you can try:
- If the drift is intentional, ignore this message
- Otherwise align the account manually:
~~~
$ sudo usermod -s /usr/sbin/nologin -g <group> <user>
~~~`,
	}

	issues = map[Id]*Issue{
		rootRequiredIssue.Id():     rootRequiredIssue,
		systemdNotFoundIssue.Id():  systemdNotFoundIssue,
		aptNotFoundIssue.Id():      aptNotFoundIssue,
		pythonNotFoundIssue.Id():   pythonNotFoundIssue,
		configLoadFailedIssue.Id(): configLoadFailedIssue,
		lockHeldIssue.Id():         lockHeldIssue,
		accountDriftIssue.Id():     accountDriftIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
