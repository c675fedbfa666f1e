package security

// RedactorService is the AppContext service holding the process Redactor.
const RedactorService = "security.redactor"

type serviceLookup interface {
	GetService(name string) (any, bool)
}

// AddSecrets registers secrets with the Redactor published on services.
// It is a no-op when none is published, as in unit tests.
func AddSecrets(services serviceLookup, secrets ...string) {
	svc, ok := services.GetService(RedactorService)
	if !ok {
		return
	}
	if r, ok := svc.(*Redactor); ok {
		r.AddLiteral(secrets...)
	}
}
