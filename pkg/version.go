package zotkit

// Version is the current zotkit release.
const Version = "0.3.0"
