/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvLoadString(t *testing.T) {
	envId := `GRAVWELL_TEST`
	tval := `testing123`
	def := `default stuff`
	var v string

	//attempt to load with nothing set
	if err := LoadEnvVar(&v, envId, def); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("Did not load default value: %s != %s", v, def)
	}

	//load with something already there
	if err := LoadEnvVar(&v, envId, `ignore me`); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("Did not leave existing value: %s %s", v, def)
	}

	//load something into the environment
	if err := os.Setenv(envId, tval); err != nil {
		t.Fatal(err)
	}

	//try again with something there
	if err := LoadEnvVar(&v, envId, `ignore me`); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("Did not leave existing value: %s %s", v, def)
	}
	//wipe out the existing and check that we load from the env
	v = ``
	if err := LoadEnvVar(&v, envId, `ignore me`); err != nil {
		t.Fatal(err)
	} else if v != tval {
		t.Fatalf("Did not pull value from environment: %s != %s", v, tval)
	}
}

func TestEnvLoadList(t *testing.T) {
	envId := `GRAVWELL_TEST_LIST`
	var v []string

	//nothing set, nothing set
	if err := LoadEnvVar(&v, envId, nil); err != nil {
		t.Fatal(err)
	} else if len(v) != 0 {
		t.Fatalf("expected empty list, got %v", v)
	}

	if err := os.Setenv(envId, `cass1:9042, cass2:9042,cass3:9042`); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnvVar(&v, envId, nil); err != nil {
		t.Fatal(err)
	} else if len(v) != 3 {
		t.Fatalf("expected 3 servers, got %v", v)
	} else if v[0] != `cass1:9042` || v[1] != `cass2:9042` || v[2] != `cass3:9042` {
		t.Fatalf("list not trimmed/split correctly: %v", v)
	}

	// a non-empty list is left alone
	existing := []string{`already-set:9042`}
	if err := LoadEnvVar(&existing, envId, nil); err != nil {
		t.Fatal(err)
	} else if len(existing) != 1 || existing[0] != `already-set:9042` {
		t.Fatalf("did not leave existing list alone: %v", existing)
	}
}

func TestEnvFileLoadString(t *testing.T) {
	envId := `GRAVWELL_STRING_TEST`
	envFileId := envId + `_FILE`
	tfile := filepath.Join(tempDir, envId+`_FILE`)
	tval := `testing123`
	def := `default values`
	var v string
	if err := ioutil.WriteFile(tfile, []byte(tval), 0660); err != nil {
		t.Fatal(err)
	}

	//attempt to load with nothing set
	if err := LoadEnvVar(&v, envId, def); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("Did not load default value: %s != %s", v, def)
	}

	//load with something already there
	if err := LoadEnvVar(&v, envId, `ignore me`); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("Did not leave existing value: %s %s", v, def)
	}

	//load the file in the file extension
	if err := os.Setenv(envFileId, tfile); err != nil {
		t.Fatal(err)
	}

	//try again with something there
	if err := LoadEnvVar(&v, envId, `ignore me`); err != nil {
		t.Fatal(err)
	} else if v != def {
		t.Fatalf("Did not leave existing value: %s %s", v, def)
	}
	//wipe out the existing and check that we load from the env
	v = ``
	if err := LoadEnvVar(&v, envId, `ignore me`); err != nil {
		t.Fatal(err)
	} else if v != tval {
		t.Fatalf("Did not pull value from environment: %s != %s", v, tval)
	}
}
