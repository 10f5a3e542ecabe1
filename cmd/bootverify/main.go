// Copyright 2024 The bootverify authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// The bootverify tool validates a firmware image file the way the
// bootloader would: it checks the embedded digest and signature records
// against a table of trusted keys, and reports accept or reject.
package main

import (
	"flag"
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"github.com/armoredboot/bootverify/image"
	"github.com/armoredboot/bootverify/keys"
	"github.com/armoredboot/bootverify/verify"
)

var (
	imageFile     = flag.String("image", "", "Firmware image file to validate.")
	keysFile      = flag.String("keys", "", "YAML file listing the trusted public keys.")
	algName       = flag.String("alg", "rsa2048-pss", "Signature algorithm: rsa2048-pss, ecdsa-p256 or ed25519.")
	seedFile      = flag.String("seed", "", "Optional hash seed file, for dependent images.")
	allowUnsigned = flag.Bool("allow-unsigned", false, "Accept images on digest match alone.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *imageFile == "" || *keysFile == "" {
		flag.PrintDefaults()
		os.Exit(2)
	}

	alg, err := verify.ParseAlg(*algName)
	if err != nil {
		klog.Exitf("%v", err)
	}

	table, err := keys.LoadFile(*keysFile)
	if err != nil {
		klog.Exitf("Failed to load trusted keys: %v", err)
	}
	klog.V(1).Infof("Loaded %d trusted keys from %q", table.Len(), *keysFile)

	var seed []byte
	if *seedFile != "" {
		if seed, err = os.ReadFile(*seedFile); err != nil {
			klog.Exitf("Failed to read seed %q: %v", *seedFile, err)
		}
	}

	f, err := os.Open(*imageFile)
	if err != nil {
		klog.Exitf("Failed to open image %q: %v", *imageFile, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		klog.Exitf("Failed to stat image %q: %v", *imageFile, err)
	}
	if fi.Size() > 0xffffffff {
		klog.Exitf("Image %q is too large (%d bytes)", *imageFile, fi.Size())
	}

	src := image.NewReaderAtSource(f, uint32(fi.Size()))
	hdr, err := image.ReadHeader(src)
	if err != nil {
		klog.Exitf("Failed to parse image header: %v", err)
	}
	klog.Infof("Image version %s (%s), %d header + %d body bytes",
		hdr.Version, hdr.Version.Semver(), hdr.HdrSize, hdr.ImgSize)
	if hdr.NonBootable() {
		klog.Warning("Image is flagged non-bootable")
	}

	v := verify.New(table,
		verify.WithAlg(alg),
		verify.WithSignatureRequired(!*allowUnsigned),
	)

	res, err := v.Validate(src, hdr, seed)
	if err != nil {
		klog.Errorf("Validation error: %v", err)
	}
	fmt.Printf("digest: %x\n", res.Digest)
	if !res.Accepted {
		fmt.Println("verdict: REJECT")
		os.Exit(1)
	}
	fmt.Println("verdict: ACCEPT")
}
