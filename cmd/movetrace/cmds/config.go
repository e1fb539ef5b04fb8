package cmds

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/movetrace/movetrace/pkg/config"
)

func configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config [name [args...]]",
		Short: "Lists or changes configuration parameters.",
		Long: `Lists or changes configuration parameters.

Without arguments the current configuration is listed. Otherwise the named
parameter is changed and the configuration file is saved:

	movetrace config show-bytecode true
	movetrace config max-array-values 128
	movetrace config debug-info-directories ./build/a ./build/b
	movetrace config substitute-path <from> <to>
	movetrace config substitute-path <from>

The last form removes the substitute-path rule for <from>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return configureList(cmd.OutOrStdout(), conf)
			}
			if err := configureSet(conf, args[0], args[1:]); err != nil {
				return err
			}
			return config.SaveConfig(conf)
		},
	}
}

type configureIterator struct {
	cfgValue reflect.Value
	cfgType  reflect.Type
	i        int
}

func iterateConfiguration(conf *config.Config) *configureIterator {
	cfgValue := reflect.ValueOf(conf).Elem()
	cfgType := cfgValue.Type()

	return &configureIterator{cfgValue, cfgType, -1}
}

func (it *configureIterator) Next() bool {
	it.i++
	return it.i < it.cfgValue.NumField()
}

func (it *configureIterator) Field() (name string, field reflect.Value) {
	name = it.cfgType.Field(it.i).Tag.Get("yaml")
	if comma := strings.Index(name, ","); comma >= 0 {
		name = name[:comma]
	}
	field = it.cfgValue.Field(it.i)
	return
}

func configureFindFieldByName(conf *config.Config, name string) reflect.Value {
	it := iterateConfiguration(conf)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == name {
			return field
		}
	}
	return reflect.ValueOf(nil)
}

func configureList(out io.Writer, conf *config.Config) error {
	w := new(tabwriter.Writer)
	w.Init(out, 0, 8, 1, ' ', 0)

	it := iterateConfiguration(conf)
	for it.Next() {
		fieldName, field := it.Field()
		if fieldName == "" {
			continue
		}

		if field.Kind() == reflect.Ptr {
			if !field.IsNil() {
				fmt.Fprintf(w, "%s\t%v\n", fieldName, field.Elem())
			} else {
				fmt.Fprintf(w, "%s\t<not defined>\n", fieldName)
			}
		} else {
			fmt.Fprintf(w, "%s\t%v\n", fieldName, field)
		}
	}
	return w.Flush()
}

func configureSet(conf *config.Config, cfgname string, args []string) error {
	field := configureFindFieldByName(conf, cfgname)
	if !field.CanAddr() {
		return fmt.Errorf("%q is not a configuration parameter", cfgname)
	}

	if field.Kind() == reflect.Slice {
		switch field.Type().Elem().Kind() {
		case reflect.Struct:
			return configureSetSubstitutePath(conf, args)
		case reflect.String:
			field.Set(reflect.ValueOf(append([]string(nil), args...)))
			return nil
		}
	}

	if len(args) != 1 {
		return fmt.Errorf("wrong number of arguments to %q", cfgname)
	}
	rest := args[0]

	simpleArg := func(typ reflect.Type) (reflect.Value, error) {
		switch typ.Kind() {
		case reflect.Int:
			n, err := strconv.Atoi(rest)
			if err != nil {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number", cfgname)
			}
			if n < 0 {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number greater than zero", cfgname)
			}
			return reflect.ValueOf(&n), nil
		case reflect.Bool:
			v := rest == "true"
			return reflect.ValueOf(&v), nil
		default:
			return reflect.ValueOf(nil), fmt.Errorf("unsupported type for configuration key %q", cfgname)
		}
	}

	if field.Kind() == reflect.Ptr {
		val, err := simpleArg(field.Type().Elem())
		if err != nil {
			return err
		}
		field.Set(val)
	} else {
		val, err := simpleArg(field.Type())
		if err != nil {
			return err
		}
		field.Set(val.Elem())
	}
	return nil
}

func configureSetSubstitutePath(conf *config.Config, argv []string) error {
	switch len(argv) {
	case 1: // delete substitute-path rule
		for i := range conf.SubstitutePath {
			if conf.SubstitutePath[i].From == argv[0] {
				copy(conf.SubstitutePath[i:], conf.SubstitutePath[i+1:])
				conf.SubstitutePath = conf.SubstitutePath[:len(conf.SubstitutePath)-1]
				return nil
			}
		}
		return fmt.Errorf("could not find rule for %q", argv[0])
	case 2: // add substitute-path rule
		for i := range conf.SubstitutePath {
			if conf.SubstitutePath[i].From == argv[0] {
				conf.SubstitutePath[i].To = argv[1]
				return nil
			}
		}
		conf.SubstitutePath = append(conf.SubstitutePath, config.SubstitutePathRule{From: argv[0], To: argv[1]})
	default:
		return fmt.Errorf("wrong number of arguments to \"config substitute-path\"")
	}
	return nil
}
