package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wippyai/classmeta/annotation"
	"github.com/wippyai/classmeta/classfile"
	"github.com/wippyai/classmeta/classinfo"
	"github.com/wippyai/classmeta/names"
	"github.com/wippyai/classmeta/typedesc"
)

// withSession loads the configuration, opens a session and runs fn.
func withSession(cmd *cobra.Command, fn func(s *session, out *output) error) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cmd.Flags(), configFile)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close(ctx)
	return fn(s, newOutput(cmd.OutOrStdout(), cfg.Format))
}

func newInspectCommand() *cobra.Command {
	var withSupers bool
	cmd := &cobra.Command{
		Use:   "inspect <class>",
		Short: "Show the structure of a class",
		Long: `Resolve a class by internal name, binary name, array descriptor or primitive
keyword and print its superclass, interfaces, modifiers and constructors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session, out *output) error {
				ci, err := s.resolve(args[0])
				if err != nil {
					return err
				}
				r, err := buildReport(ci, withSupers)
				if err != nil {
					return err
				}
				return out.class(r)
			})
		},
	}
	cmd.Flags().BoolVarP(&withSupers, "supers", "s", false, "Include the transitive supertype set")
	return cmd
}

func newSupersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "supers <class>",
		Short: "List every transitive supertype of a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session, out *output) error {
				ci, err := s.resolve(args[0])
				if err != nil {
					return err
				}
				supers, err := ci.Supers()
				if err != nil {
					return err
				}
				return out.supers(ci.String(), dottedAll(supers.Sorted()))
			})
		},
	}
}

func newAssignableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assignable <target> <source>",
		Short: "Check whether a source class can be used where the target is expected",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session, out *output) error {
				target, err := s.resolve(args[0])
				if err != nil {
					return err
				}
				source, err := s.resolve(args[1])
				if err != nil {
					return err
				}
				ok, err := target.IsAssignableFrom(source)
				if err != nil {
					return err
				}
				return out.assignable(AssignableReport{Target: target.String(), Source: source.String(), Assignable: ok})
			})
		},
	}
}

func newAnnotationsCommand() *cobra.Command {
	var (
		find      string
		inherited bool
	)
	cmd := &cobra.Command{
		Use:   "annotations <class>",
		Short: "List annotations on a class and its members",
		Long: `List the annotations on a class, its fields and its methods. With --find only
the given annotation is looked up, honoring its retention and targets; with
--inherited class lookups also walk the superclass chain for @Inherited kinds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session, out *output) error {
				ci, err := s.resolve(args[0])
				if err != nil {
					return err
				}
				rec, err := ci.Record()
				if err != nil {
					return err
				}
				opts := annotation.Options{Inherited: inherited}
				var list []AnnotationReport
				if find != "" {
					list, err = findAnnotation(s, rec, annotationDesc(find), opts)
				} else {
					list, err = listAnnotations(s, rec, opts)
				}
				if err != nil {
					return err
				}
				return out.annotations(list)
			})
		},
	}
	cmd.Flags().StringVar(&find, "find", "", "Annotation to look up (binary name or descriptor)")
	cmd.Flags().BoolVar(&inherited, "inherited", false, "Walk superclasses for @Inherited annotations")
	return cmd
}

// annotationDesc accepts a.b.C, a/b/C or La/b/C;.
func annotationDesc(name string) string {
	if t, err := typedesc.Parse(name); err == nil && t.Sort() == typedesc.Object {
		return name
	}
	return typedesc.ObjectType(names.ToSlashed(name)).Descriptor()
}

func findAnnotation(s *session, rec *classfile.Class, desc string, opts annotation.Options) ([]AnnotationReport, error) {
	kind, err := s.annotations.Kind(desc)
	if err != nil {
		return nil, err
	}
	var list []AnnotationReport
	a, err := s.annotations.FindOnClass(rec, kind, opts)
	if err != nil {
		return nil, err
	}
	if a != nil {
		inherited := classfile.FindAnnotation(rec.Annotations(), desc) != a
		list = append(list, reportFor(a, kind, "class", inherited))
	}
	for _, f := range rec.Fields {
		if a, err = s.annotations.FindOnField(f, kind); err != nil {
			return nil, err
		}
		if a != nil {
			list = append(list, reportFor(a, kind, "field "+f.Name, false))
		}
	}
	for _, m := range rec.Methods {
		if a, err = s.annotations.FindOnMethod(m, kind); err != nil {
			return nil, err
		}
		if a != nil {
			list = append(list, reportFor(a, kind, "method "+m.Name+m.Desc, false))
		}
	}
	return list, nil
}

func listAnnotations(s *session, rec *classfile.Class, opts annotation.Options) ([]AnnotationReport, error) {
	var list []AnnotationReport
	add := func(target string, visible, invisible []*classfile.Annotation) {
		for _, a := range visible {
			list = append(list, reportFor(a, s.kindOrGuess(a.Desc, annotation.Runtime), target, false))
		}
		for _, a := range invisible {
			list = append(list, reportFor(a, s.kindOrGuess(a.Desc, annotation.Class), target, false))
		}
	}
	add("class", rec.VisibleAnnotations, rec.InvisibleAnnotations)

	if opts.Inherited {
		seen := make(map[string]bool)
		for _, a := range rec.Annotations() {
			seen[a.Desc] = true
		}
		ci, err := s.resolve(rec.Name)
		if err != nil {
			return nil, err
		}
		for {
			if ci, err = ci.Superclass(); err != nil {
				return nil, err
			}
			if ci == nil || ci.IsRoot() {
				break
			}
			super, err := ci.Record()
			if err != nil {
				if ci.Variant() == classinfo.Loaded {
					continue
				}
				return nil, err
			}
			for _, a := range super.Annotations() {
				if seen[a.Desc] {
					continue
				}
				seen[a.Desc] = true
				kind, err := s.annotations.Kind(a.Desc)
				if err != nil || !kind.Inherited {
					continue
				}
				found, err := s.annotations.FindOnClass(rec, kind, opts)
				if err != nil {
					return nil, err
				}
				if found != nil {
					list = append(list, reportFor(found, kind, "class", true))
				}
			}
		}
	}

	for _, f := range rec.Fields {
		add("field "+f.Name, f.VisibleAnnotations, f.InvisibleAnnotations)
	}
	for _, m := range rec.Methods {
		add("method "+m.Name+m.Desc, m.VisibleAnnotations, m.InvisibleAnnotations)
	}
	return list, nil
}

// kindOrGuess resolves the annotation interface, falling back to what the
// class file list implies when it is not on the class path.
func (s *session) kindOrGuess(desc string, retention annotation.Retention) annotation.Kind {
	kind, err := s.annotations.Kind(desc)
	if err != nil {
		return annotation.Kind{Desc: desc, Retention: retention}
	}
	return kind
}

func reportFor(a *classfile.Annotation, kind annotation.Kind, target string, inherited bool) AnnotationReport {
	values := annotationValues(a)
	for name := range kind.Defaults {
		if _, ok := a.Get(name); ok {
			continue
		}
		if values == nil {
			values = make(map[string]string)
		}
		values[name] = formatValue(annotation.Property(a, name, kind, nil)) + " (default)"
	}
	return AnnotationReport{
		Desc:      a.Desc,
		Target:    target,
		Retention: kind.Retention.String(),
		Inherited: inherited,
		Values:    values,
	}
}
