// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	RemoteNotConfiguredId
	FetchFailedId
	ScriptExecutionFailedId
	ContainerNotFoundId
	ContainerInitFailedId
	ModuleNotExposedId
	NoExportFoundId
	AlreadyLoadingId
	SharedVersionUnsatisfiedId
	RemoteUnreachableId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
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

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Search order
1. The file passed with ` + "`--config`" + `
2. ` + "`$XDG_CONFIG_HOME/fedhost/config.cue`" + `
3. ` + "`./config.cue`" + `

## Things you can try:
- Print the effective configuration:
~~~
$ fedhost config show
~~~

- Check the durations, they are strings such as ` + "`\"5s\"`" + `
- Check that every remote has a unique name and an absolute entry URL`,
	}

	remoteNotConfiguredIssue = &Issue{
		id: RemoteNotConfiguredId,
		mdMsg: `
# Remote not configured!

The requested remote is not listed in the ` + "`remotes`" + ` section.

## Example remote:
~~~cue
remotes: [{
	name:   "workflow"
	entry:  "http://localhost:3001/remoteEntry.lua"
	expose: "./App"
}]
~~~`,
	}

	fetchFailedIssue = &Issue{
		id: FetchFailedId,
		mdMsg: `
# Failed to fetch the remote entry!

The entry resource could not be downloaded or returned a non-2xx status.

## Things you can try:
- Check that the remote application is running:
~~~
$ fedhost check <base-url>
~~~

- Check the host, port and path of the entry URL
- Check the proxy in front of the remote`,
	}

	scriptExecutionFailedIssue = &Issue{
		id: ScriptExecutionFailedId,
		mdMsg: `
# The remote entry failed to execute!

The entry was downloaded but raised an error while running.

## Things you can try:
- Inspect the entry for syntax problems:
~~~
$ fedhost inspect <entry-url>
~~~

- Rebuild the remote and make sure the build finished`,
	}

	containerNotFoundIssue = &Issue{
		id: ContainerNotFoundId,
		mdMsg: `
# Container not found!

The entry executed but no container was published under any candidate name
before the discovery timeout.

## Things you can try:
- Find the name the remote actually publishes:
~~~
$ fedhost inspect <entry-url>
~~~

- Add it to the remote's ` + "`candidates`" + ` or to ` + "`loader.fallback_candidates`" + `
- Raise ` + "`loader.discovery_timeout`" + ` when the remote publishes late`,
	}

	containerInitFailedIssue = &Issue{
		id: ContainerInitFailedId,
		mdMsg: `
# Container initialization failed!

The container's ` + "`init`" + ` rejected the shared scope.

## Things you can try:
- Check the versions listed in the ` + "`shared`" + ` section
- Run again with ` + "`--log-level debug`" + ` to see the shared scope`,
	}

	moduleNotExposedIssue = &Issue{
		id: ModuleNotExposedId,
		mdMsg: `
# Module not exposed!

The container does not expose the requested path.

## Things you can try:
- List the declared exposed paths:
~~~
$ fedhost inspect <entry-url>
~~~

- Check the ` + "`expose`" + ` field, paths usually start with ` + "`./`",
	}

	noExportFoundIssue = &Issue{
		id: NoExportFoundId,
		mdMsg: `
# No export found!

The factory ran but returned neither a ` + "`default`" + ` export nor a module value.

## Things you can try:
- Make the exposed module return a table
- Set ` + "`default`" + ` on the returned table`,
	}

	alreadyLoadingIssue = &Issue{
		id: AlreadyLoadingId,
		mdMsg: `
# Remote already loading!

Another resolve of the same remote is in progress. Wait for it to finish
and retry.`,
	}

	sharedVersionUnsatisfiedIssue = &Issue{
		id: SharedVersionUnsatisfiedId,
		mdMsg: `
# Shared dependency version not satisfied!

A remote asked for a shared library version that the host does not provide.

## Things you can try:
- Align the version in the ` + "`shared`" + ` section with the remote
- Drop ` + "`strict_version`" + ` to accept the host's version with a warning`,
	}

	remoteUnreachableIssue = &Issue{
		id: RemoteUnreachableId,
		mdMsg: `
# Remote unreachable!

Neither the entry nor the index page of the remote answered.

## Things you can try:
- Start the remote's dev server or container
- Check the host and port in the entry URL`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():         configLoadFailedIssue,
		remoteNotConfiguredIssue.Id():      remoteNotConfiguredIssue,
		fetchFailedIssue.Id():              fetchFailedIssue,
		scriptExecutionFailedIssue.Id():    scriptExecutionFailedIssue,
		containerNotFoundIssue.Id():        containerNotFoundIssue,
		containerInitFailedIssue.Id():      containerInitFailedIssue,
		moduleNotExposedIssue.Id():         moduleNotExposedIssue,
		noExportFoundIssue.Id():            noExportFoundIssue,
		alreadyLoadingIssue.Id():           alreadyLoadingIssue,
		sharedVersionUnsatisfiedIssue.Id(): sharedVersionUnsatisfiedIssue,
		remoteUnreachableIssue.Id():        remoteUnreachableIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
