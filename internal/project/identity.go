package project

import "strings"

// Flags are the identity values given on the command line.
type Flags struct {
	MachineID   string
	ServiceID   string
	ServiceName string
}

// Identity is the resolved deploy target.
type Identity struct {
	MachineID   string
	ServiceID   string
	ServiceName string
	// ServiceIDFromConfig is set when ServiceID came from the pointer file.
	ServiceIDFromConfig bool
	// NameFromManifest is set when ServiceName came from package.json.
	NameFromManifest bool
}

// ResolveIdentity applies, per field, the first source that yields a value:
//
//	service id:   --service, then the pointer file
//	service name: --name, then package.json (only without a service id)
//	machine id:   --machine
//
// It does no network I/O. Local read problems are passed to warn and treated
// as absent values.
func ResolveIdentity(flags Flags, root string, warn func(error)) Identity {
	if warn == nil {
		warn = func(error) {}
	}

	id := Identity{
		MachineID:   strings.TrimSpace(flags.MachineID),
		ServiceID:   strings.TrimSpace(flags.ServiceID),
		ServiceName: strings.TrimSpace(flags.ServiceName),
	}

	if id.ServiceID == "" && root != "" {
		p, ok, err := ReadPointer(root)
		switch {
		case err != nil:
			warn(err)
		case ok:
			id.ServiceID = p.ServiceID
			id.ServiceIDFromConfig = true
		}
	}

	if id.ServiceID != "" {
		// a known service keeps its name; never send both
		id.ServiceName = ""
		return id
	}

	if id.ServiceName == "" && root != "" {
		name, err := ReadManifestName(root)
		if err != nil {
			warn(err)
		} else if name != "" {
			id.ServiceName = name
			id.NameFromManifest = true
		}
	}
	return id
}
