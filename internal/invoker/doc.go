// Package invoker runs the external XSS scanning pipeline as a child process.
//
// The pipeline is a shell script (xss_automation.sh) that asks for a domain
// and a payload choice on standard input, runs a chain of recon and XSS
// tools, and writes its artifacts to results/<domain>/ under its
// installation directory. An Invoker owns one such child process per call:
//
//   - the script is located before anything is spawned
//   - the child gets the inherited environment plus tool paths, without
//     touching the parent's environment
//   - stdin answers follow an ordered prompt protocol; each answer is written
//     once the matching prompt appears in the child's output, and a prompt
//     that never appears fails the run with a diagnostic
//   - stdout and stderr are captured into bounded buffers
//   - the child runs in its own process group, which is terminated as a
//     whole on deadline or cancellation
//
// Every failure is returned as a *model.Failure with
// model.ReasonPipelineNotFound or model.ReasonPipelineError.
package invoker
