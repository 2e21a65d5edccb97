// Package pyext provides native extension compilation support for the
// CASACORE Python wrapper.
//
// This package is the Go equivalent of the wrapper's setuptools build_ext
// step. It locates the pre-installed CASACORE shared libraries, checks
// their version, probes the C++ compiler and compiles the six extension
// modules (fitting, functionals, images, measures, quanta, tables).
//
// # Preflight
//
// Before anything is compiled the build runs a fixed preflight:
//   - LibraryResolver finds libcasa_casa in the user, interpreter and
//     system library directories
//   - VersionGate loads it and compares getVersion() with the minimum
//   - FlagProber selects the C++ standard and visibility flags
//
// Any preflight failure aborts the build; there is no partial success.
//
// # Basic Usage
//
//	setup := &pyext.Setup{
//	    ProjectDir: "/path/to/python-casacore",
//	    Config: &pyext.BuildConfig{
//	        LibraryDirs: pyext.ParseLibraryDirs(os.Args[1:]),
//	        Inplace:     true,
//	    },
//	}
//	results, err := setup.Run(ctx)
//
// # Architecture
//
// Compilation uses a factory of registered builders:
//
//	BuilderFactory
//	├── UnixBuilder (gcc, clang, c++)
//	└── MSVCBuilder (cl.exe)
//
// Each builder implements the Builder interface and can:
//   - Detect if it can handle a given compiler type
//   - Compile and link one Extension
//   - Clean its build artifacts
//
// # Platform Support
//
// Full support on Linux and macOS. The version gate needs dlopen and is
// not available on Windows.
package pyext
