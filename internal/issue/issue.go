// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	UnsupportedFormatId Id = iota + 1
	CorruptArchiveId
	UnsafeArchiveId
	InvalidManifestId
	PolicyRejectedId
	FilesystemFailedId
	VersionMismatchId
	OperationCanceledId
	NetworkFailedId
	NoDownloadId
	ModNotFoundId
	ModsDirNotSetId
	ConfigLoadFailedId
	DependencyCycleId
	BridgeRejectedId
)

type MarkdownMsg string

type Issue struct {
	id    Id          // ID used to lookup the issue
	kind  string      // failure kind reported by installs and operations, if any
	mdMsg MarkdownMsg // Markdown text that will be rendered
}

func (i *Issue) Id() Id {
	return i.id
}

// Kind returns the failure kind the issue explains, or "".
func (i *Issue) Kind() string {
	return i.kind
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// Render renders the guide with the glamour style at stylePath ("auto",
// "dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	unsupportedFormatIssue = &Issue{
		id:   UnsupportedFormatId,
		kind: "format",
		mdMsg: `
# Unsupported archive format

The file is not a zip, tar, tar.gz, tar.xz or rar archive, or its contents
do not match its extension.

## Things you can try:
- Check that the download finished and is not an HTML error page
- Name the format explicitly:
~~~
$ modkit install --format zip ./SomeMod.bin
~~~
- Re-pack the mod as a zip archive`,
	}

	corruptArchiveIssue = &Issue{
		id:   CorruptArchiveId,
		kind: "corrupt",
		mdMsg: `
# The archive could not be read

The archive was recognized but reading it failed part way through. Nothing
was installed; the partially extracted files were removed.

## Things you can try:
- Download the archive again
- Open it with another archive tool to confirm it is intact
- Multi-volume and password-protected archives are not supported`,
	}

	unsafeArchiveIssue = &Issue{
		id:   UnsafeArchiveId,
		kind: "security",
		mdMsg: `
# The archive tried to write outside the mod folder

An entry in the archive has an absolute path, a drive letter or a ".."
component. modkit refuses to install such archives.

## Things you can try:
- Do not install this archive; it may be malicious
- Report it to the mod author or the site you downloaded it from`,
	}

	invalidManifestIssue = &Issue{
		id:   InvalidManifestId,
		kind: "manifest",
		mdMsg: `
# Missing or invalid mod_info.json

Every mod needs a mod_info.json with at least an id, a name and a version.
The file may sit at the archive root or inside a single top-level folder.

## Example mod_info.json:
~~~json
{
  "id": "author.coolmod",
  "name": "Cool Mod",
  "version": "1.2.0",
  "game_version": "1.6"
}
~~~`,
	}

	policyRejectedIssue = &Issue{
		id:   PolicyRejectedId,
		kind: "policy",
		mdMsg: `
# Install refused by the replace policy

The mod is already installed and the replace policy does not allow this
archive to replace it. With **replace-if-newer** only a strictly newer
version is accepted; with **reject** an installed mod is never replaced.

## Things you can try:
- Install anyway:
~~~
$ modkit install --policy always-replace ./SomeMod.zip
~~~
- Uninstall the current version first`,
	}

	filesystemFailedIssue = &Issue{
		id:   FilesystemFailedId,
		kind: "filesystem",
		mdMsg: `
# A disk operation failed

modkit could not create, move or delete files in the mods folder.

## Things you can try:
- Check free disk space
- Make sure the game is not running and holding files open
- Check the permissions of the mods folder
- Remove a leftover .modkit-staging folder if one exists`,
	}

	versionMismatchIssue = &Issue{
		id:   VersionMismatchId,
		kind: "version-mismatch",
		mdMsg: `
# The download holds a different version

The update server announced one version but the downloaded archive contains
another. The installed mod was left unchanged.

## Things you can try:
- Run the update check again later; the server may still be publishing
- Report the mismatch to the mod author`,
	}

	operationCanceledIssue = &Issue{
		id:   OperationCanceledId,
		kind: "canceled",
		mdMsg: `
# Operation canceled

The operation was canceled before it finished. Any partial install was
cleaned up and the installed mods are unchanged.`,
	}

	networkFailedIssue = &Issue{
		id:   NetworkFailedId,
		kind: "network",
		mdMsg: `
# Could not reach the update server

Fetching a version file or download failed after retrying.

## Things you can try:
- Check your internet connection
- Raise the timeout in config.cue:
~~~cue
updates: timeout: "2s"
~~~
- The mod's update URL may be outdated; check the mod page`,
	}

	noDownloadIssue = &Issue{
		id:   NoDownloadId,
		kind: "no-download",
		mdMsg: `
# No direct download available

An update exists but the mod's version file does not list a direct
download URL, so it has to be downloaded by hand.

## Things you can try:
- Download the archive from the mod page and install it:
~~~
$ modkit install ./SomeMod-1.3.0.zip
~~~`,
	}

	modNotFoundIssue = &Issue{
		id:   ModNotFoundId,
		kind: "not-found",
		mdMsg: `
# Mod not found

No installed mod has that id. Ids are matched after Unicode normalization
and case folding, so "Author.Mod" and "author.mod" are the same mod.

## Things you can try:
- List installed mods and their ids:
~~~
$ modkit list
~~~`,
	}

	modsDirNotSetIssue = &Issue{
		id: ModsDirNotSetId,
		mdMsg: `
# No mods folder configured

modkit needs to know where mods live.

## Things you can try:
- Pass it on the command line:
~~~
$ modkit --mods-dir /path/to/game/mods list
~~~
- Or set it once in config.cue:
~~~cue
game_dir: "/path/to/game"
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

The configuration file could not be read or does not match the schema.

## Things you can try:
- Check CUE syntax in your config file
- Write a fresh default file:
~~~
$ modkit config init --force
~~~
- Check MODKIT_* environment variables
- Inspect the effective configuration:
~~~
$ modkit config show
~~~`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected

Some enabled mods depend on each other in a loop, so no load order exists.

## Things you can try:
- Show the conflicts:
~~~
$ modkit list --conflicts
~~~
- Disable one of the mods in the cycle`,
	}

	bridgeRejectedIssue = &Issue{
		id: BridgeRejectedId,
		mdMsg: `
# The bridge refused the connection

The bridge server only accepts clients that present its token and speak the
same protocol version.

## Things you can try:
- Copy the token printed by 'modkit serve' again; it changes on every start
- Update the client so its protocol version matches the server`,
	}

	issues = map[Id]*Issue{
		unsupportedFormatIssue.Id(): unsupportedFormatIssue,
		corruptArchiveIssue.Id():    corruptArchiveIssue,
		unsafeArchiveIssue.Id():     unsafeArchiveIssue,
		invalidManifestIssue.Id():   invalidManifestIssue,
		policyRejectedIssue.Id():    policyRejectedIssue,
		filesystemFailedIssue.Id():  filesystemFailedIssue,
		versionMismatchIssue.Id():   versionMismatchIssue,
		operationCanceledIssue.Id(): operationCanceledIssue,
		networkFailedIssue.Id():     networkFailedIssue,
		noDownloadIssue.Id():        noDownloadIssue,
		modNotFoundIssue.Id():       modNotFoundIssue,
		modsDirNotSetIssue.Id():     modsDirNotSetIssue,
		configLoadFailedIssue.Id():  configLoadFailedIssue,
		dependencyCycleIssue.Id():   dependencyCycleIssue,
		bridgeRejectedIssue.Id():    bridgeRejectedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return int(a.id) - int(b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}

// ForKind returns the issue explaining a failure kind such as "policy" or
// "network", or nil when none does.
func ForKind(kind string) *Issue {
	if kind == "" {
		return nil
	}
	for _, i := range issues {
		if i.kind == kind {
			return i
		}
	}
	return nil
}
