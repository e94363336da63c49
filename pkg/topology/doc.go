// Package topology locates module nodes in a deployment's topology graph and
// resolves where they run (Kubernetes deployment, namespace, executor) by
// walking hosted-on relationships and matching runtime resource nodes.
package topology
